// Package badge renders embeddable certification marks (SVG and HTML) for
// certified content.
package badge

import (
	"fmt"
	"html"
	"strings"

	"github.com/certnode/certnode/internal/ics"
)

// Style selects a rendering variant.
type Style string

const (
	StyleDefault Style = "default"
	StyleCompact Style = "compact"
)

func ParseStyle(s string) Style {
	if Style(s) == StyleCompact {
		return StyleCompact
	}
	return StyleDefault
}

// Payload carries the fields a badge displays. Built from a certificate so
// the badge never needs vault access at render time.
type Payload struct {
	CertID          string       `json:"cert_id"`
	CertType        ics.CertType `json:"cert_type"`
	IssuedDate      string       `json:"issued_date"`
	HashPrefix      string       `json:"hash_prefix"`
	VerificationURL string       `json:"verification_url"`
	Operator        string       `json:"operator"`
}

// FromCertificate projects a certificate into badge fields. The hash prefix
// is display-only; verification always goes through the full URL.
func FromCertificate(cert *ics.Certificate) Payload {
	issued := cert.Metadata.Timestamp
	if len(issued) >= 10 {
		issued = issued[:10]
	}
	prefix := cert.Fingerprint.CombinedHash
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return Payload{
		CertID:          cert.CertID(),
		CertType:        cert.CertType(),
		IssuedDate:      issued,
		HashPrefix:      prefix,
		VerificationURL: cert.VerificationData.VerificationURL,
		Operator:        cert.Metadata.Operator,
	}
}

func typeLabel(t ics.CertType) string {
	switch t {
	case ics.CertLogicFragment:
		return "Logic Fragment"
	case ics.CertResearchPaper:
		return "Research Paper"
	default:
		return "Full Document"
	}
}

// RenderSVG produces a standalone SVG badge.
func RenderSVG(p Payload, style Style) string {
	if style == StyleCompact {
		return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="160" height="28" role="img" aria-label="Certified">
  <rect width="160" height="28" rx="4" fill="#1a7f37"/>
  <text x="10" y="18" font-family="Verdana,sans-serif" font-size="11" fill="#ffffff">&#10003; Certified %s</text>
</svg>`, html.EscapeString(p.IssuedDate))
	}

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="280" height="72" role="img" aria-label="Content certified">
  <rect width="280" height="72" rx="6" fill="#0d1117" stroke="#1a7f37" stroke-width="2"/>
  <text x="14" y="24" font-family="Verdana,sans-serif" font-size="13" font-weight="bold" fill="#1a7f37">&#10003; %s Certified</text>
  <text x="14" y="42" font-family="Verdana,sans-serif" font-size="10" fill="#8b949e">%s · issued %s</text>
  <text x="14" y="58" font-family="monospace" font-size="10" fill="#8b949e">%s…</text>
</svg>`,
		html.EscapeString(p.Operator),
		html.EscapeString(typeLabel(p.CertType)),
		html.EscapeString(p.IssuedDate),
		html.EscapeString(p.HashPrefix))
}

// RenderHTML produces an embeddable HTML snippet linking to verification.
func RenderHTML(p Payload, style Style) string {
	var b strings.Builder
	if style == StyleCompact {
		fmt.Fprintf(&b,
			`<a class="certnode-badge certnode-badge-compact" href="%s" title="Certificate %s">&#10003; Certified %s</a>`,
			html.EscapeString(p.VerificationURL),
			html.EscapeString(p.CertID),
			html.EscapeString(p.IssuedDate))
		return b.String()
	}

	fmt.Fprintf(&b, `<div class="certnode-badge">
  <a href="%s" title="Verify certificate %s">
    <span class="certnode-badge-mark">&#10003; %s Certified</span>
    <span class="certnode-badge-type">%s</span>
    <span class="certnode-badge-date">issued %s</span>
    <span class="certnode-badge-hash">%s…</span>
  </a>
</div>`,
		html.EscapeString(p.VerificationURL),
		html.EscapeString(p.CertID),
		html.EscapeString(p.Operator),
		html.EscapeString(typeLabel(p.CertType)),
		html.EscapeString(p.IssuedDate),
		html.EscapeString(p.HashPrefix))
	return b.String()
}
