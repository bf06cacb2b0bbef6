// Package certify orchestrates the full certification pipeline: CDP analysis,
// FRAME boundary checking and STRIDE drift detection in parallel, the scoring
// gate, and certificate issuance into the vault.
package certify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/certnode/certnode/internal/cdp"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/frame"
	"github.com/certnode/certnode/internal/ics"
	"github.com/certnode/certnode/internal/stride"
	"github.com/certnode/certnode/internal/vault"
)

var (
	ErrContentTooShort = errors.New("content below minimum length for certification")
	ErrInvalidCertType = errors.New("unknown certification type")
)

// Request is one certification run. AuthorID is optional; when present it is
// hashed into the certificate rather than stored in the clear.
type Request struct {
	Content  string       `json:"content"`
	CertType ics.CertType `json:"cert_type"`
	AuthorID string       `json:"author_id,omitempty"`
}

// Result reports the outcome of a run. Success false with a populated Issues
// list is a gate failure, not an error; errors are reserved for requests the
// pipeline refused to analyze at all.
type Result struct {
	Success         bool             `json:"certification_success"`
	Score           float64          `json:"certification_score"`
	Certificate     *ics.Certificate `json:"certificate,omitempty"`
	CDP             cdp.Result       `json:"cdp_analysis"`
	Frame           frame.Result     `json:"frame_analysis"`
	Stride          stride.Result    `json:"stride_analysis"`
	Issues          []string         `json:"issues,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	VaultStored     bool             `json:"vault_stored"`
}

// Pipeline wires the analyzers to the generator and vault. Safe for
// concurrent use; the vault serializes its own writes.
type Pipeline struct {
	analyzer  *cdp.Analyzer
	checker   *frame.Checker
	detector  *stride.Detector
	gen       *ics.Generator
	store     *vault.Store
	threshold float64
	minLength int
	logger    *slog.Logger
}

// New builds a pipeline from configuration. Frame boundary overrides from the
// config are applied here so the frame package stays calibration-free.
func New(cfg *config.Config, store *vault.Store) *Pipeline {
	rules := cdp.DefaultRuleset()
	rules.MinParagraphWords = cfg.Certification.MinParagraphWords

	boundaries := frame.DefaultBoundaries()
	for i, b := range boundaries {
		ov, ok := cfg.Frame.Boundaries[b.Type]
		if !ok {
			continue
		}
		if ov.Min != nil {
			boundaries[i].Min = *ov.Min
		}
		if ov.Max != nil {
			boundaries[i].Max = *ov.Max
		}
		if ov.Target != nil {
			boundaries[i].Target = *ov.Target
		}
		if ov.Weight != nil {
			boundaries[i].Weight = *ov.Weight
		}
	}

	return &Pipeline{
		analyzer:  cdp.NewAnalyzer(rules),
		checker:   frame.NewChecker(boundaries),
		detector:  stride.NewDetector(stride.DefaultRuleset()),
		gen:       ics.NewGenerator(cfg.Certification.Operator, cfg.Certification.BaseURL, rules),
		store:     store,
		threshold: cfg.Certification.Threshold,
		minLength: cfg.Certification.MinContentLength,
		logger:    slog.Default().With("component", "certify"),
	}
}

// GenesisHash exposes the deployment genesis constant for status reporting.
func (p *Pipeline) GenesisHash() string { return p.gen.GenesisHash() }

// Threshold reports the configured certification gate.
func (p *Pipeline) Threshold() float64 { return p.threshold }

// Certify runs the full pipeline. Validation failures return an error before
// any analysis; analysis panics are recovered into a failed Result so one bad
// document cannot take down a serving process.
func (p *Pipeline) Certify(req Request) (res *Result, err error) {
	if len(req.Content) < p.minLength {
		return nil, fmt.Errorf("%w: %d < %d characters", ErrContentTooShort, len(req.Content), p.minLength)
	}
	if !req.CertType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCertType, req.CertType)
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis panic recovered", "panic", r)
			res = &Result{
				Success: false,
				Issues:  []string{fmt.Sprintf("Internal analysis failure: %v", r)},
			}
			err = nil
		}
	}()

	cdpRes := p.analyzer.Analyze(req.Content)

	// FRAME and STRIDE both consume the CDP result and are independent of
	// each other.
	var frameRes frame.Result
	var strideRes stride.Result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		frameRes = p.checker.Check(cdpRes)
	}()
	go func() {
		defer wg.Done()
		strideRes = p.detector.Detect(cdpRes)
	}()
	wg.Wait()

	score := p.score(cdpRes, frameRes, strideRes)
	passed := score >= p.threshold &&
		cdpRes.ConvergenceAchieved &&
		frameRes.BoundariesSatisfied &&
		strideRes.Drift.Severity <= 0.7

	res = &Result{
		Success: passed,
		Score:   score,
		CDP:     cdpRes,
		Frame:   frameRes,
		Stride:  strideRes,
	}

	if !passed {
		res.Issues, res.Recommendations = p.diagnose(cdpRes, frameRes, strideRes, score)
		p.logger.Info("certification failed",
			"score", score,
			"convergence", cdpRes.ConvergenceAchieved,
			"boundaries", frameRes.BoundariesSatisfied,
			"drift_severity", strideRes.Drift.Severity)
		return res, nil
	}

	cert := p.gen.Generate(req.Content, cdpRes, frameRes, strideRes, req.CertType, req.AuthorID)
	res.Certificate = cert
	res.VaultStored = p.store.Put(cert)

	p.logger.Info("certificate issued",
		"cert_id", cert.CertID(),
		"score", score,
		"cert_type", string(req.CertType),
		"vault_stored", res.VaultStored)
	return res, nil
}

// score blends the three analyses: 40% CDP (convergence, integrity,
// continuity), 35% FRAME structural score, 25% inverted STRIDE suppression.
func (p *Pipeline) score(cdpRes cdp.Result, frameRes frame.Result, strideRes stride.Result) float64 {
	convergence := 0.0
	if cdpRes.ConvergenceAchieved {
		convergence = 1
	}
	cdpScore := 0.4*convergence + 0.3*cdpRes.StructuralIntegrity + 0.3*cdpRes.LogicContinuity

	score := 0.4*cdpScore + 0.35*frameRes.StructuralScore + 0.25*(1-strideRes.SuppressionScore)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (p *Pipeline) diagnose(cdpRes cdp.Result, frameRes frame.Result,
	strideRes stride.Result, score float64) (issues, recs []string) {

	if score < p.threshold {
		issues = append(issues, fmt.Sprintf("Certification score %.3f below threshold %.2f", score, p.threshold))
	}
	if !cdpRes.ConvergenceAchieved {
		issues = append(issues, "Content does not achieve logical convergence")
		recs = append(recs,
			"Strengthen final paragraph with decisive conclusion",
			"Improve logical flow between paragraphs")
	}
	if !frameRes.BoundariesSatisfied {
		issues = append(issues, frameRes.Violations...)
	}
	recs = append(recs, frameRes.Recommendations...)
	if strideRes.Drift.Severity > 0.7 {
		issues = append(issues, "Content contains rhetorical drift requiring suppression")
	}
	if strideRes.SuppressionNeeded {
		recs = append(recs, strideRes.Recommendations...)
	}

	seen := make(map[string]struct{}, len(recs))
	var out []string
	for _, r := range recs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return issues, out
}

// Verify checks a certificate against content. The certificate may come from
// the caller (serialized JSON) or, when certJSON is empty, be looked up in the
// vault by combined hash.
func (p *Pipeline) Verify(content string, certJSON []byte) (bool, []string, error) {
	var cert *ics.Certificate
	var err error

	if len(certJSON) > 0 {
		cert, err = ics.Parse(certJSON)
		if err != nil {
			return false, nil, err
		}
	} else {
		entry, lerr := p.store.ByContentHash(ics.HashContent(content))
		if lerr != nil {
			return false, nil, lerr
		}
		if entry == nil {
			return false, []string{"No certificate found for this content"}, nil
		}
		cert, err = entry.Certificate()
		if err != nil {
			return false, nil, err
		}
	}

	valid, errs := p.gen.Verify(content, cert)
	return valid, errs, nil
}

// VerifyStored verifies content against the vault entry with the given
// combined hash.
func (p *Pipeline) VerifyStored(content, combinedHash string) (bool, []string, error) {
	entry, err := p.store.ByHash(combinedHash)
	if err != nil {
		return false, nil, err
	}
	if entry == nil {
		return false, []string{"Certificate not found in vault"}, nil
	}
	cert, err := entry.Certificate()
	if err != nil {
		return false, nil, err
	}
	valid, errs := p.gen.Verify(content, cert)
	return valid, errs, nil
}
