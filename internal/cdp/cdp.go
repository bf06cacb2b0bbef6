// Package cdp implements the Convergent Drafting Protocol analyzer: paragraph
// segmentation, slope/anchor classification, and document convergence metrics.
package cdp

import (
	"regexp"
	"strings"
)

type Slope string

const (
	SlopeInstructional Slope = "INSTRUCTIONAL"
	SlopeComparative   Slope = "COMPARATIVE"
	SlopeTheoretical   Slope = "THEORETICAL"
	SlopePersuasive    Slope = "PERSUASIVE"
	SlopeDiagnostic    Slope = "DIAGNOSTIC"
	SlopeRecursive     Slope = "RECURSIVE"
)

type Anchor string

const (
	AnchorPrimarySource      Anchor = "PRIMARY_SOURCE"
	AnchorSyntheticRationale Anchor = "SYNTHETIC_RATIONALE"
	AnchorCrossSourcedLogic  Anchor = "CROSS_SOURCED_LOGIC"
	AnchorContextualRecall   Anchor = "CONTEXTUAL_RECALL"
)

type Pattern string

const (
	PatternTaperedLinearity Pattern = "TAPERED_LINEARITY"
	PatternNestedGlide      Pattern = "NESTED_GLIDE"
	PatternSpiralDescent    Pattern = "SPIRAL_DESCENT"
	PatternAnchorLockChain  Pattern = "ANCHOR_LOCK_CHAIN"
)

// Paragraph is the per-paragraph analysis record. Immutable once produced.
type Paragraph struct {
	Content         string  `json:"content"`
	WordCount       int     `json:"word_count"`
	SentenceCount   int     `json:"sentence_count"`
	Slope           Slope   `json:"slope_type"`
	Anchor          Anchor  `json:"anchor_type"`
	Pattern         Pattern `json:"convergence_pattern"`
	LogicWeight     float64 `json:"logic_weight"`
	ClauseDensity   float64 `json:"clause_density"`
	ResolutionScore float64 `json:"resolution_score"`
}

// Result is the document-level CDP analysis.
type Result struct {
	Paragraphs          []Paragraph `json:"paragraphs"`
	OverallSlope        Slope       `json:"overall_slope"`
	StructuralIntegrity float64     `json:"structural_integrity"`
	LogicContinuity     float64     `json:"logic_continuity"`
	ConvergenceAchieved bool        `json:"convergence_achieved"`
	TotalWords          int         `json:"total_words"`
}

// convergenceThreshold gates integrity, continuity, and final resolution.
const convergenceThreshold = 0.6

// sentenceRe splits on terminal punctuation runs followed by whitespace or
// end of text, so abbreviations mid-token survive.
var sentenceRe = regexp.MustCompile(`[.!?]+(\s+|$)`)

// Analyzer applies an immutable Ruleset to raw text. Safe for concurrent use.
type Analyzer struct {
	rules Ruleset
}

func NewAnalyzer(rules Ruleset) *Analyzer {
	return &Analyzer{rules: rules}
}

// Analyze segments content on blank-line boundaries, drops paragraphs under
// the word-count floor, classifies each survivor, and aggregates.
// An empty document after filtering yields zero integrity and no convergence.
func (a *Analyzer) Analyze(content string) Result {
	var paragraphs []Paragraph
	totalWords := 0
	for _, raw := range splitParagraphs(content) {
		words := strings.Fields(raw)
		if len(words) < a.rules.MinParagraphWords {
			continue
		}
		p := a.analyzeParagraph(raw, words)
		paragraphs = append(paragraphs, p)
		totalWords += p.WordCount
	}

	return Result{
		Paragraphs:          paragraphs,
		OverallSlope:        overallSlope(paragraphs),
		StructuralIntegrity: structuralIntegrity(paragraphs),
		LogicContinuity:     logicContinuity(paragraphs),
		ConvergenceAchieved: assessConvergence(paragraphs),
		TotalWords:          totalWords,
	}
}

func splitParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, part := range strings.Split(content, "\n\n") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences exposes the sentence splitter shared with the drift detector.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a *Analyzer) analyzeParagraph(content string, words []string) Paragraph {
	sentences := SplitSentences(content)
	lower := strings.ToLower(content)

	return Paragraph{
		Content:         content,
		WordCount:       len(words),
		SentenceCount:   len(sentences),
		Slope:           a.detectSlope(lower),
		Anchor:          a.detectAnchor(lower),
		Pattern:         a.detectPattern(lower, sentences),
		LogicWeight:     a.logicWeight(lower, sentences),
		ClauseDensity:   clauseDensity(sentences),
		ResolutionScore: a.resolutionScore(sentences),
	}
}

// countPresent counts how many markers appear at least once in lower.
func countPresent(lower string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}

func (a *Analyzer) detectSlope(lower string) Slope {
	best := SlopeTheoretical
	bestScore := 0
	for _, sm := range a.rules.SlopeMarkers {
		if score := countPresent(lower, sm.Markers); score > bestScore {
			best, bestScore = sm.Slope, score
		}
	}
	return best
}

func (a *Analyzer) detectAnchor(lower string) Anchor {
	best := AnchorSyntheticRationale
	bestScore := 0
	for _, am := range a.rules.AnchorMarkers {
		if score := countPresent(lower, am.Markers); score > bestScore {
			best, bestScore = am.Anchor, score
		}
	}
	return best
}

func (a *Analyzer) detectPattern(lower string, sentences []string) Pattern {
	if len(sentences) < 2 {
		return PatternTaperedLinearity
	}
	lengths := make([]int, len(sentences))
	for i, s := range sentences {
		lengths[i] = len(strings.Fields(s))
	}
	if n := len(lengths); n >= 3 && lengths[n-1] < lengths[0] && lengths[n-2] < lengths[0] {
		return PatternTaperedLinearity
	}
	for _, s := range sentences {
		if strings.Contains(s, "(") && strings.Contains(s, ")") {
			return PatternNestedGlide
		}
	}
	if countPresent(lower, a.rules.SpiralMarkers) > 0 {
		return PatternSpiralDescent
	}
	return PatternAnchorLockChain
}

func (a *Analyzer) logicWeight(lower string, sentences []string) float64 {
	hits := countPresent(lower, a.rules.Connectors) + countPresent(lower, a.rules.Qualifiers)

	total := 0
	for _, s := range sentences {
		total += len(strings.Fields(s))
	}
	if len(sentences) == 0 {
		return 0
	}
	avgLen := float64(total) / float64(len(sentences))
	complexity := avgLen / 20
	if complexity > 2 {
		complexity = 2
	}
	weight := float64(hits) * complexity / 10
	if weight > 1 {
		weight = 1
	}
	return weight
}

func clauseDensity(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	clauses := 0
	for _, s := range sentences {
		clauses += strings.Count(s, ",") + strings.Count(s, ";") +
			strings.Count(s, " and ") + strings.Count(s, " but ") + 1
	}
	density := float64(clauses) / float64(len(sentences)) / 5
	if density > 1 {
		density = 1
	}
	return density
}

// resolutionScore inspects only the final sentence: strong markers push the
// score up from 0.7, weak markers pull it down from 0.3, otherwise 0.5.
func (a *Analyzer) resolutionScore(sentences []string) float64 {
	if len(sentences) < 2 {
		return 0.5
	}
	last := strings.ToLower(sentences[len(sentences)-1])

	if n := countPresent(last, a.rules.StrongResolution); n > 0 {
		score := 0.7 + float64(n)*0.1
		if score > 1 {
			score = 1
		}
		return score
	}
	if n := countPresent(last, a.rules.WeakResolution); n > 0 {
		score := 0.3 - float64(n)*0.1
		if score < 0 {
			score = 0
		}
		return score
	}
	return 0.5
}

func overallSlope(paragraphs []Paragraph) Slope {
	if len(paragraphs) == 0 {
		return SlopeTheoretical
	}
	counts := make(map[Slope]int)
	for _, p := range paragraphs {
		counts[p.Slope]++
	}
	// First paragraph wins ties: scan in document order.
	best := paragraphs[0].Slope
	for _, p := range paragraphs {
		if counts[p.Slope] > counts[best] {
			best = p.Slope
		}
	}
	return best
}

func structuralIntegrity(paragraphs []Paragraph) float64 {
	if len(paragraphs) == 0 {
		return 0
	}
	var weight, density, resolution float64
	for _, p := range paragraphs {
		weight += p.LogicWeight
		density += p.ClauseDensity
		resolution += p.ResolutionScore
	}
	n := float64(len(paragraphs))
	return (weight/n + density/n + resolution/n) / 3
}

// logicContinuity scores consecutive-pair coherence: slope agreement, smooth
// logic-weight progression, and resolution-to-opening handoff.
func logicContinuity(paragraphs []Paragraph) float64 {
	if len(paragraphs) < 2 {
		return 1
	}
	var sum float64
	for i := 0; i < len(paragraphs)-1; i++ {
		cur, next := paragraphs[i], paragraphs[i+1]

		slopeConsistency := 0.5
		if cur.Slope == next.Slope {
			slopeConsistency = 1
		}
		weightDiff := cur.LogicWeight - next.LogicWeight
		if weightDiff < 0 {
			weightDiff = -weightDiff
		}
		weightConsistency := 1 - weightDiff
		if weightConsistency < 0 {
			weightConsistency = 0
		}
		transition := (cur.ResolutionScore + next.LogicWeight) / 2

		sum += (slopeConsistency + weightConsistency + transition) / 3
	}
	return sum / float64(len(paragraphs)-1)
}

// assessConvergence requires at least two qualifying paragraphs: a single
// paragraph has nothing to converge across, even though its continuity
// defaults to 1.
func assessConvergence(paragraphs []Paragraph) bool {
	if len(paragraphs) < 2 {
		return false
	}
	final := paragraphs[len(paragraphs)-1].ResolutionScore
	return structuralIntegrity(paragraphs) >= convergenceThreshold &&
		logicContinuity(paragraphs) >= convergenceThreshold &&
		final >= convergenceThreshold
}
