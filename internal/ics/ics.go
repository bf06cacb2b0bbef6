// Package ics issues Immutable Content Signatures: deterministic multi-level
// hash fingerprints wrapped in a verifiable certificate.
package ics

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certnode/certnode/internal/cdp"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/frame"
	"github.com/certnode/certnode/internal/stride"
)

const hashAlgorithm = "sha256"

// maxCertificateAge bounds how old a certificate may be and still verify.
const maxCertificateAge = 5 * 365 * 24 * time.Hour

// CertType is the certification class requested by the caller.
type CertType string

const (
	CertLogicFragment CertType = "LOGIC_FRAGMENT"
	CertFullDocument  CertType = "FULL_DOCUMENT"
	CertResearchPaper CertType = "RESEARCH_PAPER"
)

func (t CertType) Valid() bool {
	switch t {
	case CertLogicFragment, CertFullDocument, CertResearchPaper:
		return true
	}
	return false
}

// Fingerprint is the four-digest content signature. Deterministic: identical
// content and analysis always reproduce identical digests.
type Fingerprint struct {
	ContentHash   string `json:"content_hash"`
	StructureHash string `json:"structure_hash"`
	LogicHash     string `json:"logic_hash"`
	CombinedHash  string `json:"combined_hash"`
	Algorithm     string `json:"fingerprint_algorithm"`
}

type Metadata struct {
	CertID             string            `json:"cert_id"`
	Timestamp          string            `json:"timestamp"`
	Operator           string            `json:"operator"`
	SystemVersion      string            `json:"system_version"`
	ProcessingVersions map[string]string `json:"processing_versions"`
	ContentType        CertType          `json:"content_type"`
	AuthorSignature    string            `json:"author_signature,omitempty"`
}

type CDPSummary struct {
	OverallSlope        cdp.Slope `json:"overall_slope"`
	StructuralIntegrity float64   `json:"structural_integrity"`
	LogicContinuity     float64   `json:"logic_continuity"`
	ConvergenceAchieved bool      `json:"convergence_achieved"`
	TotalParagraphs     int       `json:"total_paragraphs"`
}

type FrameSummary struct {
	BoundariesSatisfied bool    `json:"boundaries_satisfied"`
	StructuralScore     float64 `json:"structural_score"`
	TaperAchieved       bool    `json:"taper_achieved"`
	SlopeResolution     bool    `json:"slope_resolution"`
	ViolationCount      int     `json:"violation_count"`
}

type StrideSummary struct {
	SuppressionNeeded bool    `json:"suppression_needed"`
	SuppressionScore  float64 `json:"suppression_score"`
	ToneNeutrality    float64 `json:"tone_neutrality"`
	DriftDetected     bool    `json:"drift_detected"`
	DriftSeverity     float64 `json:"drift_severity"`
}

type AnalysisSummary struct {
	CDP    CDPSummary    `json:"cdp_analysis"`
	Frame  FrameSummary  `json:"frame_analysis"`
	Stride StrideSummary `json:"stride_analysis"`
}

// VerificationData carries everything an external party needs to locate and
// re-check the certificate.
type VerificationData struct {
	Algorithm       string   `json:"verification_algorithm"`
	ContentLength   int      `json:"content_length"`
	WordCount       int      `json:"word_count"`
	ParagraphCount  int      `json:"paragraph_count"`
	CertType        CertType `json:"cert_type"`
	Timestamp       string   `json:"processing_timestamp"`
	VerificationURL string   `json:"verification_url"`
	BadgeURL        string   `json:"badge_url"`
	VaultURL        string   `json:"vault_url"`
}

// Certificate is the complete ICS record. Logically immutable once issued;
// Verify detects any mutation of content or of the certificate itself.
type Certificate struct {
	Fingerprint      Fingerprint      `json:"fingerprint"`
	Metadata         Metadata         `json:"metadata"`
	AnalysisSummary  AnalysisSummary  `json:"analysis_summary"`
	VaultAnchor      string           `json:"vault_anchor"`
	VerificationData VerificationData `json:"verification_data"`
}

func (c *Certificate) CertID() string     { return c.Metadata.CertID }
func (c *Certificate) Timestamp() string  { return c.Metadata.Timestamp }
func (c *Certificate) CertType() CertType { return c.Metadata.ContentType }

// JSON serializes the certificate for export and vault storage.
func (c *Certificate) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Parse decodes a serialized certificate, rejecting anything that lacks the
// mandatory field groups.
func Parse(data []byte) (*Certificate, error) {
	var cert Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("invalid certificate JSON: %w", err)
	}
	if cert.Fingerprint.CombinedHash == "" || cert.Metadata.CertID == "" || cert.VaultAnchor == "" {
		return nil, fmt.Errorf("invalid certificate: missing fingerprint, cert id, or vault anchor")
	}
	return &cert, nil
}

// Generator issues and verifies certificates. The genesis hash is computed
// once from fixed version/operator strings and the classification
// vocabularies, so it is stable across a deployment.
type Generator struct {
	operator string
	baseURL  string
	genesis  string
}

func NewGenerator(operator, baseURL string, rules cdp.Ruleset) *Generator {
	return &Generator{
		operator: operator,
		baseURL:  strings.TrimRight(baseURL, "/"),
		genesis:  genesisHash(operator, rules),
	}
}

func genesisHash(operator string, rules cdp.Ruleset) string {
	return hashCanonical(map[string]any{
		"versions": map[string]any{
			"cdp":      config.CDPVersion,
			"frame":    config.FrameVersion,
			"stride":   config.StrideVersion,
			"certnode": config.Version,
		},
		"operator":     operator,
		"slope_types":  rules.SlopeNames(),
		"anchor_types": rules.AnchorNames(),
	})
}

// GenesisHash exposes the deployment constant for status reporting.
func (g *Generator) GenesisHash() string { return g.genesis }

// Generate issues a certificate for content that passed the gate. Hashes are
// pure functions of the inputs; the cert id and timestamp are fresh per call.
func (g *Generator) Generate(content string, cdpRes cdp.Result, frameRes frame.Result,
	strideRes stride.Result, certType CertType, authorID string) *Certificate {

	fp := g.fingerprint(content, cdpRes, frameRes, strideRes)

	meta := Metadata{
		CertID:        uuid.NewString(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Operator:      g.operator,
		SystemVersion: config.Version,
		ProcessingVersions: map[string]string{
			"CDP":    config.CDPVersion,
			"FRAME":  config.FrameVersion,
			"STRIDE": config.StrideVersion,
		},
		ContentType: certType,
	}
	if authorID != "" {
		sum := sha256.Sum256([]byte(authorID))
		meta.AuthorSignature = hex.EncodeToString(sum[:])[:16]
	}

	anchor := g.vaultAnchor(fp.CombinedHash, meta.CertID, meta.Timestamp)

	return &Certificate{
		Fingerprint: fp,
		Metadata:    meta,
		AnalysisSummary: AnalysisSummary{
			CDP: CDPSummary{
				OverallSlope:        cdpRes.OverallSlope,
				StructuralIntegrity: round3(cdpRes.StructuralIntegrity),
				LogicContinuity:     round3(cdpRes.LogicContinuity),
				ConvergenceAchieved: cdpRes.ConvergenceAchieved,
				TotalParagraphs:     len(cdpRes.Paragraphs),
			},
			Frame: FrameSummary{
				BoundariesSatisfied: frameRes.BoundariesSatisfied,
				StructuralScore:     round3(frameRes.StructuralScore),
				TaperAchieved:       frameRes.Taper.Achieved,
				SlopeResolution:     frameRes.SlopeResolution,
				ViolationCount:      len(frameRes.Violations),
			},
			Stride: StrideSummary{
				SuppressionNeeded: strideRes.SuppressionNeeded,
				SuppressionScore:  round3(strideRes.SuppressionScore),
				ToneNeutrality:    round3(strideRes.Tone.ToneNeutrality),
				DriftDetected:     strideRes.Drift.Severity > 0.4,
				DriftSeverity:     round3(strideRes.Drift.Severity),
			},
		},
		VaultAnchor: anchor,
		VerificationData: VerificationData{
			Algorithm:       hashAlgorithm,
			ContentLength:   len(content),
			WordCount:       len(strings.Fields(content)),
			ParagraphCount:  strings.Count(content, "\n\n") + 1,
			CertType:        certType,
			Timestamp:       meta.Timestamp,
			VerificationURL: g.baseURL + "/verify?hash=" + fp.CombinedHash,
			BadgeURL:        g.baseURL + "/badge?cert=" + meta.CertID,
			VaultURL:        g.baseURL + "/vault?anchor=" + anchor,
		},
	}
}

func (g *Generator) fingerprint(content string, cdpRes cdp.Result,
	frameRes frame.Result, strideRes stride.Result) Fingerprint {

	contentHash := HashContent(content)

	slopes := make([]string, len(cdpRes.Paragraphs))
	anchors := make([]string, len(cdpRes.Paragraphs))
	for i, p := range cdpRes.Paragraphs {
		slopes[i] = string(p.Slope)
		anchors[i] = string(p.Anchor)
	}
	structureHash := hashCanonical(map[string]any{
		"overall_slope":        string(cdpRes.OverallSlope),
		"structural_integrity": cdpRes.StructuralIntegrity,
		"logic_continuity":     cdpRes.LogicContinuity,
		"convergence_achieved": cdpRes.ConvergenceAchieved,
		"paragraph_count":      len(cdpRes.Paragraphs),
		"paragraph_slopes":     slopes,
		"paragraph_anchors":    anchors,
	})

	logicHash := hashCanonical(map[string]any{
		"boundaries_satisfied": frameRes.BoundariesSatisfied,
		"structural_score":     frameRes.StructuralScore,
		"taper_achieved":       frameRes.Taper.Achieved,
		"slope_resolution":     frameRes.SlopeResolution,
		"suppression_score":    strideRes.SuppressionScore,
		"tone_neutrality":      strideRes.Tone.ToneNeutrality,
		"drift_severity":       strideRes.Drift.Severity,
	})

	return Fingerprint{
		ContentHash:   contentHash,
		StructureHash: structureHash,
		LogicHash:     logicHash,
		CombinedHash:  combinedHash(contentHash, structureHash, logicHash, config.Version),
		Algorithm:     hashAlgorithm,
	}
}

func combinedHash(contentHash, structureHash, logicHash, version string) string {
	return hashCanonical(map[string]any{
		"content_hash":      contentHash,
		"structure_hash":    structureHash,
		"logic_hash":        logicHash,
		"generator_version": version,
		"algorithm":         hashAlgorithm,
	})
}

func (g *Generator) vaultAnchor(combined, certID, timestamp string) string {
	return hashCanonical(map[string]any{
		"combined_hash": combined,
		"cert_id":       certID,
		"timestamp":     timestamp,
		"operator":      g.operator,
		"genesis_hash":  g.genesis,
	})
}

// Verify re-derives every checkable digest and collects all failures rather
// than stopping at the first, so partial corruption is fully diagnosed.
func (g *Generator) Verify(content string, cert *Certificate) (bool, []string) {
	var errs []string

	if HashContent(content) != cert.Fingerprint.ContentHash {
		errs = append(errs, "Content hash mismatch - content has been modified")
	}

	expected := combinedHash(cert.Fingerprint.ContentHash, cert.Fingerprint.StructureHash,
		cert.Fingerprint.LogicHash, cert.Metadata.SystemVersion)
	if expected != cert.Fingerprint.CombinedHash {
		errs = append(errs, "Combined hash verification failed - signature integrity compromised")
	}

	anchor := g.vaultAnchor(cert.Fingerprint.CombinedHash, cert.Metadata.CertID, cert.Metadata.Timestamp)
	if anchor != cert.VaultAnchor {
		errs = append(errs, "Vault anchor verification failed")
	}

	issued, err := time.Parse(time.RFC3339Nano, cert.Metadata.Timestamp)
	if err != nil {
		errs = append(errs, "Invalid timestamp format in certificate")
	} else if time.Since(issued) > maxCertificateAge {
		errs = append(errs, "Certificate is too old (> 5 years)")
	}

	return len(errs) == 0, errs
}

// HashContent hashes raw content bytes.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// hashCanonical hashes the canonical JSON form of data: keys sorted (Go maps
// marshal sorted), HTML escaping off, no insignificant whitespace. Required
// for hash reproducibility across runs.
func hashCanonical(data map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		// Inputs are plain maps of scalars and string slices; this cannot fail.
		panic(fmt.Sprintf("ics: canonical encode: %v", err))
	}
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
