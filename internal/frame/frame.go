// Package frame enforces structural boundaries and taper on CDP output.
package frame

import (
	"fmt"
	"strings"

	"github.com/certnode/certnode/internal/cdp"
)

// Boundary is one row of the structural constraint table. Only the
// paragraph-count and document-aggregate rows are enforced; the per-paragraph
// rows (logic_weight, clause_density, resolution_score) are declared for
// calibration and reporting but not independently checked.
type Boundary struct {
	Type   string  `json:"boundary_type"`
	Min    float64 `json:"min_value"`
	Max    float64 `json:"max_value"`
	Target float64 `json:"target_value"`
	Weight float64 `json:"weight"`
}

const (
	BoundaryParagraphCount      = "paragraph_count"
	BoundaryLogicWeight         = "logic_weight"
	BoundaryClauseDensity       = "clause_density"
	BoundaryResolutionScore     = "resolution_score"
	BoundaryStructuralIntegrity = "structural_integrity"
	BoundaryLogicContinuity     = "logic_continuity"
)

func DefaultBoundaries() []Boundary {
	return []Boundary{
		{BoundaryParagraphCount, 2, 50, 8, 0.8},
		{BoundaryLogicWeight, 0.3, 1, 0.7, 1},
		{BoundaryClauseDensity, 0.2, 1, 0.6, 0.9},
		{BoundaryResolutionScore, 0.4, 1, 0.8, 1},
		{BoundaryStructuralIntegrity, 0.5, 1, 0.75, 1},
		{BoundaryLogicContinuity, 0.4, 1, 0.7, 0.9},
	}
}

// Taper describes how the document narrows toward its conclusion.
type Taper struct {
	Achieved           bool    `json:"taper_achieved"`
	Score              float64 `json:"taper_score"`
	Pattern            string  `json:"taper_pattern"`
	ResolutionStrength float64 `json:"resolution_strength"`
}

type Result struct {
	BoundariesSatisfied bool     `json:"boundaries_satisfied"`
	Violations          []string `json:"boundary_violations"`
	Taper               Taper    `json:"taper_analysis"`
	SlopeResolution     bool     `json:"slope_resolution"`
	StructuralScore     float64  `json:"structural_score"`
	LogicalConsistency  float64  `json:"logical_consistency"`
	EvidenceQuality     float64  `json:"evidence_quality"`
	ReasoningClarity    float64  `json:"reasoning_clarity"`
	Recommendations     []string `json:"recommendations"`
}

// Checker validates CDP results against an immutable boundary table.
type Checker struct {
	boundaries map[string]Boundary
}

func NewChecker(boundaries []Boundary) *Checker {
	m := make(map[string]Boundary, len(boundaries))
	for _, b := range boundaries {
		m[b.Type] = b
	}
	return &Checker{boundaries: m}
}

// Check runs boundary, taper, and resolution analysis over a CDP result.
func (c *Checker) Check(res cdp.Result) Result {
	satisfied, violations := c.checkBoundaries(res)
	taper := analyzeTaper(res.Paragraphs)
	slopeResolution := checkSlopeResolution(res)

	return Result{
		BoundariesSatisfied: satisfied,
		Violations:          violations,
		Taper:               taper,
		SlopeResolution:     slopeResolution,
		StructuralScore:     structuralScore(satisfied, taper, slopeResolution),
		LogicalConsistency:  res.LogicContinuity,
		EvidenceQuality:     evidenceQuality(res),
		ReasoningClarity:    reasoningClarity(res),
		Recommendations:     recommendations(violations, taper, slopeResolution),
	}
}

func (c *Checker) checkBoundaries(res cdp.Result) (bool, []string) {
	var violations []string

	count := len(res.Paragraphs)
	pb := c.boundaries[BoundaryParagraphCount]
	if float64(count) < pb.Min {
		violations = append(violations, fmt.Sprintf("Insufficient paragraphs: %d < %g", count, pb.Min))
	} else if float64(count) > pb.Max {
		violations = append(violations, fmt.Sprintf("Excessive paragraphs: %d > %g", count, pb.Max))
	}

	ib := c.boundaries[BoundaryStructuralIntegrity]
	if res.StructuralIntegrity < ib.Min {
		violations = append(violations, fmt.Sprintf("Low structural integrity: %.2f < %g", res.StructuralIntegrity, ib.Min))
	}

	cb := c.boundaries[BoundaryLogicContinuity]
	if res.LogicContinuity < cb.Min {
		violations = append(violations, fmt.Sprintf("Poor logic continuity: %.2f < %g", res.LogicContinuity, cb.Min))
	}

	return len(violations) == 0, violations
}

func analyzeTaper(paragraphs []cdp.Paragraph) Taper {
	if len(paragraphs) < 3 {
		strength := 0.0
		if len(paragraphs) > 0 {
			strength = paragraphs[len(paragraphs)-1].ResolutionScore
		}
		return Taper{Achieved: false, Score: 0.5, Pattern: "insufficient_length", ResolutionStrength: strength}
	}

	descending := descendingTaper(paragraphs)
	resolving := resolutionTaper(paragraphs)

	var pattern string
	var score float64
	switch {
	case descending && resolving:
		pattern, score = "optimal_convergent", 0.9
	case descending:
		pattern, score = "length_convergent", 0.7
	case resolving:
		pattern, score = "logic_convergent", 0.8
	default:
		pattern, score = "non_convergent", 0.3
	}

	return Taper{
		Achieved:           score >= 0.6,
		Score:              score,
		Pattern:            pattern,
		ResolutionStrength: paragraphs[len(paragraphs)-1].ResolutionScore,
	}
}

// descendingTaper compares mean word counts of the first and last thirds;
// the closing third must run at 80% of the opening third or less.
func descendingTaper(paragraphs []cdp.Paragraph) bool {
	third := len(paragraphs) / 3
	if third == 0 {
		third = 1
	}
	var first, last float64
	for i := 0; i < third; i++ {
		first += float64(paragraphs[i].WordCount)
	}
	for i := len(paragraphs) - third; i < len(paragraphs); i++ {
		last += float64(paragraphs[i].WordCount)
	}
	return last/float64(third) <= first/float64(third)*0.8
}

// resolutionTaper asks whether the final paragraph is at least as logically
// decisive as the average of everything before it.
func resolutionTaper(paragraphs []cdp.Paragraph) bool {
	n := len(paragraphs)
	var sum float64
	for _, p := range paragraphs[:n-1] {
		sum += p.LogicWeight
	}
	return paragraphs[n-1].LogicWeight >= sum/float64(n-1)
}

func checkSlopeResolution(res cdp.Result) bool {
	if !res.ConvergenceAchieved || len(res.Paragraphs) == 0 {
		return false
	}
	return res.Paragraphs[len(res.Paragraphs)-1].ResolutionScore >= 0.6
}

func structuralScore(satisfied bool, taper Taper, slopeResolution bool) float64 {
	boundaryScore := 0.5
	if satisfied {
		boundaryScore = 1
	}
	resolutionScore := 0.3
	if slopeResolution {
		resolutionScore = 1
	}
	return 0.4*boundaryScore + 0.3*taper.Score + 0.3*resolutionScore
}

func evidenceQuality(res cdp.Result) float64 {
	if len(res.Paragraphs) == 0 {
		return 0
	}
	primary := 0
	for _, p := range res.Paragraphs {
		if p.Anchor == cdp.AnchorPrimarySource {
			primary++
		}
	}
	ratio := float64(primary) / float64(len(res.Paragraphs))
	return (ratio + res.StructuralIntegrity) / 2
}

func reasoningClarity(res cdp.Result) float64 {
	if len(res.Paragraphs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range res.Paragraphs {
		sum += p.LogicWeight
	}
	clarity := sum / float64(len(res.Paragraphs))
	if res.ConvergenceAchieved {
		clarity += 0.2
	}
	if clarity > 1 {
		clarity = 1
	}
	return clarity
}

// recommendations pattern-matches violation text and taper/resolution state
// into fixed remediation strings, de-duplicated in first-trigger order.
func recommendations(violations []string, taper Taper, slopeResolution bool) []string {
	var recs []string
	for _, v := range violations {
		lower := strings.ToLower(v)
		switch {
		case strings.Contains(lower, "paragraphs"):
			if strings.Contains(lower, "insufficient") {
				recs = append(recs, "Add more paragraphs to develop logic fully")
			} else {
				recs = append(recs, "Consolidate paragraphs to improve focus")
			}
		case strings.Contains(lower, "logic weight"):
			recs = append(recs, "Strengthen logical reasoning with more connectors and qualifiers")
		case strings.Contains(lower, "clause density"):
			recs = append(recs, "Increase sentence complexity with more interlocking clauses")
		case strings.Contains(lower, "resolution"):
			recs = append(recs, "Strengthen final paragraph with decisive conclusion")
		case strings.Contains(lower, "continuity"):
			recs = append(recs, "Improve logical flow between paragraphs")
		}
	}

	if !taper.Achieved {
		if taper.Pattern == "non_convergent" {
			recs = append(recs, "Restructure content to converge toward clear resolution")
		} else if !strings.Contains(taper.Pattern, "length") {
			recs = append(recs, "Taper paragraph length toward conclusion")
		}
	}
	if !slopeResolution {
		recs = append(recs, "Strengthen logical conclusion to achieve slope resolution")
	}

	return dedupe(recs)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
