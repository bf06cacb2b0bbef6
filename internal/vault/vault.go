// Package vault persists issued certificates in an append-only SQLite ledger
// and watches stored content hashes for drift.
package vault

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/certnode/certnode/internal/ics"
)

// Entry is the persisted projection of a certificate. Rows are never updated
// or deleted once written.
type Entry struct {
	VaultAnchor     string    `json:"vault_anchor"`
	CertID          string    `json:"cert_id"`
	ICSHash         string    `json:"ics_hash"`
	ContentHash     string    `json:"content_hash"`
	Timestamp       string    `json:"timestamp"`
	CertType        string    `json:"cert_type"`
	AuthorSignature string    `json:"author_signature,omitempty"`
	Metadata        string    `json:"metadata"`
	CreatedAt       time.Time `json:"created_at"`
}

// Certificate re-parses the serialized certificate stored with the entry.
func (e *Entry) Certificate() (*ics.Certificate, error) {
	return ics.Parse([]byte(e.Metadata))
}

type Stats struct {
	TotalCertifications   int    `json:"total_certifications"`
	UnresolvedDriftAlerts int    `json:"unresolved_drift_alerts"`
	LastCertification     string `json:"last_certification,omitempty"`
}

// Store is the ledger handle. All mutating operations serialize behind mu;
// concurrent certification runs may analyze in parallel but queue here.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates or opens the vault database at path and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening vault database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging vault database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating vault database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database location (for status reporting).
func (s *Store) Path() string { return s.path }

// SetMetadata writes a vault metadata key (genesis hash, operator, version).
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO vault_metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

// Put appends a certificate to the ledger. Soft-fail: a uniqueness collision
// or persistence error returns false and never propagates — the
// certification itself remains valid, the caller just knows the write
// did not land.
func (s *Store) Put(cert *ics.Certificate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	serialized, err := cert.JSON()
	if err != nil {
		slog.Error("vault: serializing certificate", "cert_id", cert.CertID(), "error", err)
		return false
	}

	_, err = s.db.Exec(`
		INSERT INTO vault_entries
			(vault_anchor, cert_id, ics_hash, content_hash, timestamp, cert_type, author_signature, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.VaultAnchor,
		cert.CertID(),
		cert.Fingerprint.CombinedHash,
		cert.Fingerprint.ContentHash,
		cert.Timestamp(),
		string(cert.CertType()),
		cert.Metadata.AuthorSignature,
		string(serialized),
		time.Now().UTC(),
	)
	if err != nil {
		slog.Warn("vault: store failed", "cert_id", cert.CertID(), "error", err)
		return false
	}
	return true
}

const entryColumns = `vault_anchor, cert_id, ics_hash, content_hash, timestamp, cert_type,
	COALESCE(author_signature, ''), metadata, created_at`

func scanEntry(s interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	err := s.Scan(&e.VaultAnchor, &e.CertID, &e.ICSHash, &e.ContentHash,
		&e.Timestamp, &e.CertType, &e.AuthorSignature, &e.Metadata, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ByID retrieves an entry by certificate id. Missing entries return (nil, nil).
func (s *Store) ByID(certID string) (*Entry, error) {
	return s.one(`SELECT `+entryColumns+` FROM vault_entries WHERE cert_id = ?`, certID)
}

// ByHash retrieves the most recent entry with the given combined (ICS) hash.
// Re-certifying identical content issues a fresh certificate with the same
// fingerprint, so the hash is not unique across the ledger.
func (s *Store) ByHash(hash string) (*Entry, error) {
	return s.one(`SELECT `+entryColumns+` FROM vault_entries WHERE ics_hash = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, hash)
}

// ByContentHash retrieves the most recent entry certifying content with the
// given content digest.
func (s *Store) ByContentHash(hash string) (*Entry, error) {
	return s.one(`SELECT `+entryColumns+` FROM vault_entries WHERE content_hash = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, hash)
}

// ByAnchor retrieves an entry by vault anchor.
func (s *Store) ByAnchor(anchor string) (*Entry, error) {
	return s.one(`SELECT `+entryColumns+` FROM vault_entries WHERE vault_anchor = ?`, anchor)
}

func (s *Store) one(query string, arg any) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault lookup: %w", err)
	}
	return e, nil
}

// List returns entries ordered by insertion time descending.
func (s *Store) List(limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT `+entryColumns+` FROM vault_entries
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("vault list: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats reports ledger size and outstanding drift alerts.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vault_entries`).Scan(&st.TotalCertifications); err != nil {
		return st, fmt.Errorf("vault stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM drift_alerts WHERE resolved = 0`).Scan(&st.UnresolvedDriftAlerts); err != nil {
		return st, fmt.Errorf("vault stats: %w", err)
	}
	var last sql.NullString
	if err := s.db.QueryRow(`SELECT timestamp FROM vault_entries ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&last); err != nil && err != sql.ErrNoRows {
		return st, fmt.Errorf("vault stats: %w", err)
	}
	st.LastCertification = last.String
	return st, nil
}
