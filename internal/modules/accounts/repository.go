package accounts

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists whole account records in accounts.db, keyed by
// nickname. There are no partial-field updates: Put always rewrites the full
// record (overwrite semantics, not a merge). Two concurrent mutators of the
// same nickname can therefore race and the later Put wins; the single-tab
// use case this serves accepts that.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new account repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "accounts").Logger(),
	}
}

// Get retrieves an account record by nickname.
// Returns nil, nil when no record exists. Read or decode faults wrap
// ErrStorageRead so callers can tell "absent" apart from "unreadable" -
// a duplicate check must never mistake a fault for a free nickname.
func (r *Repository) Get(nickname string) (*Account, error) {
	var data []byte
	err := r.db.QueryRow("SELECT data FROM accounts WHERE nickname = ?", nickname).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageRead, nickname, err)
	}

	var acct Account
	if err := msgpack.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorageRead, nickname, err)
	}
	acct.Normalize()

	return &acct, nil
}

// Exists reports whether a record exists for the nickname.
func (r *Repository) Exists(nickname string) (bool, error) {
	var one int
	err := r.db.QueryRow("SELECT 1 FROM accounts WHERE nickname = ?", nickname).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrStorageRead, nickname, err)
	}
	return true, nil
}

// Put upserts the whole account record under its nickname.
// Write faults (quota, I/O) wrap ErrStorageWrite; the record on disk is
// either the previous version or the new one, never a partial write.
func (r *Repository) Put(acct *Account) error {
	data, err := msgpack.Marshal(acct)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorageWrite, acct.Nickname, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO accounts (nickname, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(nickname) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, acct.Nickname, data, time.Now().Unix())
	if err != nil {
		r.log.Error().Err(err).Str("nickname", acct.Nickname).Msg("Failed to write account record")
		return fmt.Errorf("%w: put %s: %v", ErrStorageWrite, acct.Nickname, err)
	}

	return nil
}

// Count returns the number of stored account records.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStorageRead, err)
	}
	return n, nil
}
