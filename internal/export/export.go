// Package export writes certification artifacts to disk: the certified text
// with an embedded certification block, the signature file, and the full
// analysis report.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/certnode/certnode/internal/certify"
	"github.com/certnode/certnode/internal/ics"
)

// Bundle names the files written for one certification.
type Bundle struct {
	CertifiedPath string `json:"certified_path"`
	SignaturePath string `json:"signature_path"`
	ReportPath    string `json:"report_path"`
}

// WriteBundle writes all three artifacts for a successful certification into
// dir, named by certificate id. Fails if the result carries no certificate.
func WriteBundle(dir, content string, res *certify.Result) (*Bundle, error) {
	if res == nil || res.Certificate == nil {
		return nil, fmt.Errorf("export: result has no certificate")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: creating output dir: %w", err)
	}

	cert := res.Certificate
	base := filepath.Join(dir, cert.CertID())

	b := &Bundle{
		CertifiedPath: base + ".certified.txt",
		SignaturePath: base + ".signature.json",
		ReportPath:    base + ".report.json",
	}

	if err := os.WriteFile(b.CertifiedPath, []byte(CertifiedText(content, cert)), 0o644); err != nil {
		return nil, fmt.Errorf("export: writing certified text: %w", err)
	}

	sig, err := cert.JSON()
	if err != nil {
		return nil, fmt.Errorf("export: serializing signature: %w", err)
	}
	if err := os.WriteFile(b.SignaturePath, sig, 0o644); err != nil {
		return nil, fmt.Errorf("export: writing signature: %w", err)
	}

	report, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: serializing report: %w", err)
	}
	if err := os.WriteFile(b.ReportPath, report, 0o644); err != nil {
		return nil, fmt.Errorf("export: writing report: %w", err)
	}

	return b, nil
}

// CertifiedText wraps content in a header/footer certification block. The
// original content is preserved byte for byte between the markers so it can
// be extracted and re-verified.
func CertifiedText(content string, cert *ics.Certificate) string {
	var b strings.Builder
	b.WriteString("=== CERTIFIED CONTENT ===\n")
	fmt.Fprintf(&b, "Certificate ID: %s\n", cert.CertID())
	fmt.Fprintf(&b, "Issued: %s\n", cert.Timestamp())
	fmt.Fprintf(&b, "Type: %s\n", cert.CertType())
	fmt.Fprintf(&b, "Verify: %s\n", cert.VerificationData.VerificationURL)
	b.WriteString("=== BEGIN CONTENT ===\n")
	b.WriteString(content)
	b.WriteString("\n=== END CONTENT ===\n")
	fmt.Fprintf(&b, "Content hash: %s\n", cert.Fingerprint.ContentHash)
	fmt.Fprintf(&b, "Vault anchor: %s\n", cert.VaultAnchor)
	return b.String()
}

// ExtractContent pulls the original content back out of a certified text
// file, for re-verification.
func ExtractContent(certified string) (string, error) {
	const begin = "=== BEGIN CONTENT ===\n"
	const end = "\n=== END CONTENT ==="
	i := strings.Index(certified, begin)
	if i < 0 {
		return "", fmt.Errorf("export: begin marker not found")
	}
	rest := certified[i+len(begin):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", fmt.Errorf("export: end marker not found")
	}
	return rest[:j], nil
}
