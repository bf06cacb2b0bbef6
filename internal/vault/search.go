package vault

import (
	"fmt"
	"strings"
)

// Filter narrows a ledger search. Zero values mean "any". Date bounds are
// matched as string prefixes against the certificate timestamp, so plain
// YYYY-MM-DD values work.
type Filter struct {
	CertType        string
	AuthorSignature string
	DateFrom        string
	DateTo          string
	Limit           int
}

const maxSearchLimit = 100

// Search returns entries matching the filter, newest first.
func (s *Store) Search(f Filter) ([]*Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var conds []string
	var args []any
	if f.CertType != "" {
		conds = append(conds, "cert_type = ?")
		args = append(args, f.CertType)
	}
	if f.AuthorSignature != "" {
		conds = append(conds, "author_signature = ?")
		args = append(args, f.AuthorSignature)
	}
	if f.DateFrom != "" {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		// Append a high sentinel so a bare date matches the whole day.
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.DateTo+"￿")
	}

	query := `SELECT ` + entryColumns + ` FROM vault_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("vault search: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}
