// Package backup serializes account records to transportable JSON documents
// and restores them, possibly under a new nickname and password.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/credentials"
	"github.com/lmoraes/backfinance/internal/modules/accounts"
)

// ErrInvalidBackupFormat indicates the uploaded document could not be parsed
// as an account record.
var ErrInvalidBackupFormat = errors.New("invalid backup format")

// Service handles export and import of account documents.
type Service struct {
	repo *accounts.Repository
	log  zerolog.Logger
}

// NewService creates a new backup service.
func NewService(repo *accounts.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "backup").Logger(),
	}
}

// Filename returns the conventional download name for an account's backup.
func Filename(nickname string) string {
	return fmt.Sprintf("backfinance-%s.json", nickname)
}

// Export serializes the account verbatim as an indented JSON document and
// returns it together with its conventional filename. The document shares
// no references with the live record.
func (s *Service) Export(acct *accounts.Account) ([]byte, string, error) {
	doc, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize backup for %s: %w", acct.Nickname, err)
	}
	return doc, Filename(acct.Nickname), nil
}

// Import restores a backup document under newNickname with a freshly
// digested newPassword, regardless of what the document contained. Absent
// ledger, catalog, or wallet fields are back-filled with empty defaults so
// older or partial documents restore cleanly. The restored record overwrites
// any existing record at newNickname - restore-overwrites is the intended
// policy; replaced tells the boundary whether that happened so it can have
// warned the user beforehand.
func (s *Service) Import(document []byte, newNickname, newPassword string) (acct *accounts.Account, replaced bool, err error) {
	newNickname = strings.TrimSpace(newNickname)
	if newNickname == "" || newPassword == "" {
		return nil, false, fmt.Errorf("%w: nickname and password are required to restore", accounts.ErrValidation)
	}

	var restored accounts.Account
	if err := json.Unmarshal(document, &restored); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidBackupFormat, err)
	}

	restored.Nickname = newNickname
	restored.PasswordDigest = credentials.Digest(newPassword)
	restored.Normalize()

	replaced, err = s.repo.Exists(newNickname)
	if err != nil {
		return nil, false, err
	}

	if err := s.repo.Put(&restored); err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("nickname", newNickname).
		Bool("replaced", replaced).
		Int("transactions", len(restored.Ledger)).
		Msg("Backup imported")
	return &restored, replaced, nil
}
