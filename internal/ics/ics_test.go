package ics

import (
	"strings"
	"testing"

	"github.com/certnode/certnode/internal/cdp"
	"github.com/certnode/certnode/internal/frame"
	"github.com/certnode/certnode/internal/stride"
)

const testDoc = "Sensor drift accounts for most of the residual error, because the reference junction " +
	"warms during long runs, and since the housing lacks insulation, the baseline moves with ambient " +
	"temperature. Repeated measurements likely understate the effect, as the logging interval smooths " +
	"short excursions, although the trend suggests a steady gradient across the board. Therefore the " +
	"calibration routine must compensate for housing temperature, thus anchoring every reading to a " +
	"stable reference point.\n\n" +
	"The remaining work therefore narrows, because the method appears stable, since the residuals stay " +
	"bounded, and furthermore the outliers likely vanish once the table covers the upper end of the " +
	"range. In conclusion the drift correction holds across the tested span, thus the sensor meets its " +
	"specification, and consequently the release can proceed."

func analyze(t *testing.T) (cdp.Result, frame.Result, stride.Result) {
	t.Helper()
	cdpRes := cdp.NewAnalyzer(cdp.DefaultRuleset()).Analyze(testDoc)
	if len(cdpRes.Paragraphs) != 2 {
		t.Fatalf("fixture should survive filtering as 2 paragraphs, got %d", len(cdpRes.Paragraphs))
	}
	frameRes := frame.NewChecker(frame.DefaultBoundaries()).Check(cdpRes)
	strideRes := stride.NewDetector(stride.DefaultRuleset()).Detect(cdpRes)
	return cdpRes, frameRes, strideRes
}

func newTestGenerator() *Generator {
	return NewGenerator("CertNode", "https://certnode.io", cdp.DefaultRuleset())
}

func TestFingerprintDeterminism(t *testing.T) {
	cdpRes, frameRes, strideRes := analyze(t)
	g := newTestGenerator()

	a := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertFullDocument, "author-1")
	b := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertFullDocument, "author-1")

	if a.Fingerprint != b.Fingerprint {
		t.Errorf("fingerprints differ across runs:\n%+v\n%+v", a.Fingerprint, b.Fingerprint)
	}
	if a.CertID() == b.CertID() {
		t.Error("cert ids must be fresh per issuance")
	}
	if a.VaultAnchor == b.VaultAnchor {
		t.Error("vault anchors must differ across issuances")
	}
	if a.Metadata.AuthorSignature != b.Metadata.AuthorSignature || len(a.Metadata.AuthorSignature) != 16 {
		t.Errorf("author signature not stable 16-hex prefix: %q vs %q",
			a.Metadata.AuthorSignature, b.Metadata.AuthorSignature)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	cdpRes, frameRes, strideRes := analyze(t)
	g := newTestGenerator()
	cert := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertFullDocument, "")

	valid, errs := g.Verify(testDoc, cert)
	if !valid {
		t.Fatalf("fresh certificate should verify, got errors: %v", errs)
	}
}

func TestVerifySingleCharMutation(t *testing.T) {
	cdpRes, frameRes, strideRes := analyze(t)
	g := newTestGenerator()
	cert := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertFullDocument, "")

	valid, errs := g.Verify(testDoc+"!", cert)
	if valid {
		t.Fatal("mutated content must not verify")
	}
	if len(errs) != 1 || errs[0] != "Content hash mismatch - content has been modified" {
		t.Errorf("errors = %v, want exactly the content-hash mismatch", errs)
	}
}

func TestVerifyTamperedFingerprint(t *testing.T) {
	cdpRes, frameRes, strideRes := analyze(t)
	g := newTestGenerator()
	cert := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertFullDocument, "")
	cert.Fingerprint.ContentHash = strings.Repeat("0", 64)

	valid, errs := g.Verify(testDoc, cert)
	if valid {
		t.Fatal("tampered fingerprint must not verify")
	}
	if len(errs) < 2 {
		t.Errorf("tampering should break both content and combined hashes, got %v", errs)
	}
}

func TestParseRejectsIncomplete(t *testing.T) {
	if _, err := Parse([]byte(`{"metadata":{"cert_id":"x"}}`)); err == nil {
		t.Error("certificate without fingerprint and anchor must be rejected")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("malformed JSON must be rejected")
	}
}

func TestCertificateJSONRoundTrip(t *testing.T) {
	cdpRes, frameRes, strideRes := analyze(t)
	g := newTestGenerator()
	cert := g.Generate(testDoc, cdpRes, frameRes, strideRes, CertResearchPaper, "a")

	data, err := cert.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Fingerprint.CombinedHash != cert.Fingerprint.CombinedHash {
		t.Error("combined hash lost in round trip")
	}
	if parsed.CertType() != CertResearchPaper {
		t.Errorf("cert type = %s, want RESEARCH_PAPER", parsed.CertType())
	}
}

func TestGenesisHash(t *testing.T) {
	rules := cdp.DefaultRuleset()
	a := NewGenerator("CertNode", "https://certnode.io", rules)
	b := NewGenerator("CertNode", "https://certnode.io", rules)
	if a.GenesisHash() != b.GenesisHash() {
		t.Error("genesis hash must be stable for identical deployments")
	}
	c := NewGenerator("OtherOperator", "https://certnode.io", rules)
	if a.GenesisHash() == c.GenesisHash() {
		t.Error("genesis hash must depend on the operator")
	}
}

func TestCertTypeValid(t *testing.T) {
	for _, ct := range []CertType{CertLogicFragment, CertFullDocument, CertResearchPaper} {
		if !ct.Valid() {
			t.Errorf("%s should be valid", ct)
		}
	}
	if CertType("BOGUS").Valid() {
		t.Error("unknown cert type should be invalid")
	}
}
