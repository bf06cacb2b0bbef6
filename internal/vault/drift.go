package vault

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/certnode/certnode/internal/ics"
)

// DriftAlert records a detected mismatch between stored and observed content
// hashes. Alerts are never deleted, only marked resolved.
type DriftAlert struct {
	ID           int64     `json:"id"`
	CertID       string    `json:"cert_id"`
	OriginalHash string    `json:"original_hash"`
	CurrentHash  string    `json:"current_hash"`
	Severity     float64   `json:"severity"`
	AlertType    string    `json:"alert_type"`
	Resolved     bool      `json:"resolved"`
	CreatedAt    time.Time `json:"created_at"`
}

const alertTypeContentDrift = "CONTENT_DRIFT"

// ErrNotFound reports a drift check against an unknown certificate id.
var ErrNotFound = fmt.Errorf("certificate not found in vault")

// DetectDrift compares current content against the stored hash for certID.
// On mismatch it persists a DriftAlert and returns it; an unmodified document
// returns (nil, nil).
func (s *Store) DetectDrift(certID, currentContent string) (*DriftAlert, error) {
	entry, err := s.ByID(certID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}

	currentHash := ics.HashContent(currentContent)
	if currentHash == entry.ContentHash {
		return nil, nil
	}

	alert := &DriftAlert{
		CertID:       certID,
		OriginalHash: entry.ContentHash,
		CurrentHash:  currentHash,
		Severity:     DriftSeverity(entry.ContentHash, currentHash),
		AlertType:    alertTypeContentDrift,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO drift_alerts (cert_id, original_hash, current_hash, severity, alert_type, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		alert.CertID, alert.OriginalHash, alert.CurrentHash, alert.Severity, alert.AlertType, alert.CreatedAt)
	if err != nil {
		// Surveillance must still report the drift even if the alert row
		// could not be written.
		slog.Error("vault: storing drift alert", "cert_id", certID, "error", err)
		return alert, nil
	}
	alert.ID, _ = res.LastInsertId()

	slog.Warn("vault: content drift detected",
		"cert_id", certID, "severity", alert.Severity)
	return alert, nil
}

// DriftSeverity is the normalized Hamming distance over hex digest
// characters. A known-weak heuristic kept for ledger compatibility: any
// content change flips essentially all characters, so severity saturates
// near 1 rather than measuring edit distance on the content itself.
func DriftSeverity(originalHash, currentHash string) float64 {
	if len(originalHash) != len(currentHash) {
		return 1
	}
	diff := 0
	for i := range originalHash {
		if originalHash[i] != currentHash[i] {
			diff++
		}
	}
	severity := float64(diff) / float64(len(originalHash))
	if severity > 1 {
		severity = 1
	}
	return severity
}

// ResolveAlert marks a drift alert handled. The row itself is retained.
func (s *Store) ResolveAlert(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE drift_alerts SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("resolving alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resolving alert %d: no such alert", id)
	}
	return nil
}

// Alerts lists drift alerts, optionally only unresolved ones.
func (s *Store) Alerts(unresolvedOnly bool, limit int) ([]*DriftAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, cert_id, original_hash, current_hash, severity, alert_type, resolved, created_at
		FROM drift_alerts`
	if unresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var out []*DriftAlert
	for rows.Next() {
		var a DriftAlert
		if err := rows.Scan(&a.ID, &a.CertID, &a.OriginalHash, &a.CurrentHash,
			&a.Severity, &a.AlertType, &a.Resolved, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
