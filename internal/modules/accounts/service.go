package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/credentials"
)

// Service implements the account aggregate operations. Every mutation does
// its own whole-record read-modify-write: load the record, mutate the copy,
// persist it via Put, and only then publish the copy into the session. A
// failed operation leaves both the in-memory aggregate and the stored
// record unchanged.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new account service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "accounts").Logger(),
	}
}

// CreateAccount registers a new account: zeroed default wallet, empty ledger
// and catalog. Returns ErrDuplicateAccount when the nickname is taken and
// ErrValidation on blank inputs. A storage fault during the duplicate check
// propagates as a fault, never as "nickname is free".
func (s *Service) CreateAccount(nickname, password string) (*Account, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || password == "" {
		return nil, fmt.Errorf("%w: nickname and password are required", ErrValidation)
	}

	existing, err := s.repo.Get(nickname)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateAccount
	}

	acct := NewAccount(nickname, credentials.Digest(password))
	if err := s.repo.Put(acct); err != nil {
		return nil, err
	}

	s.log.Info().Str("nickname", nickname).Msg("Account created")
	return acct, nil
}

// Login verifies the credentials and returns a session holding the full
// record as its working copy. ErrAccountNotFound when the nickname is
// absent, ErrInvalidCredentials on digest mismatch.
func (s *Service) Login(nickname, password string) (*Session, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || password == "" {
		return nil, fmt.Errorf("%w: nickname and password are required", ErrValidation)
	}

	acct, err := s.repo.Get(nickname)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	if !credentials.Verify(password, acct.PasswordDigest) {
		return nil, ErrInvalidCredentials
	}

	s.log.Info().Str("nickname", nickname).Msg("Login successful")
	return &Session{Nickname: nickname, Account: acct}, nil
}

// Refresh re-reads the session's record from the store, replacing the
// working copy. Used when the boundary wants render data that is guaranteed
// current.
func (s *Service) Refresh(sess *Session) error {
	acct, err := s.repo.Get(sess.Nickname)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}
	sess.Account = acct
	return nil
}

// AddTransaction appends a transaction to the ledger and applies its signed
// amount to the wallet, then persists the whole record. The wallet key is
// created at zero first when the method is not present (records imported
// with non-default methods). Rejects blank descriptions, non-positive
// amounts, and methods outside the known set with ErrValidation.
func (s *Service) AddTransaction(sess *Session, description string, amount Amount, kind Kind, method PaymentMethod) (*Transaction, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, kind)
	}
	if !KnownMethod(method) {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	acct, err := s.load(sess)
	if err != nil {
		return nil, err
	}

	trans := Transaction{
		ID:          uuid.NewString(),
		Description: description,
		Amount:      amount,
		Kind:        kind,
		Method:      method,
		CreatedAt:   time.Now(),
	}

	acct.Ledger = append(acct.Ledger, trans)
	acct.ApplyToWallet(trans)

	if err := s.repo.Put(acct); err != nil {
		return nil, err
	}
	sess.Account = acct

	s.log.Debug().
		Str("nickname", sess.Nickname).
		Str("id", trans.ID).
		Str("kind", string(kind)).
		Str("method", string(method)).
		Msg("Transaction added")
	return &trans, nil
}

// RemoveTransaction deletes a ledger entry by id and reverses its wallet
// effect, keeping wallet balances equal to the signed sum of the remaining
// entries. Unknown ids are a no-op.
func (s *Service) RemoveTransaction(sess *Session, id string) error {
	acct, err := s.load(sess)
	if err != nil {
		return err
	}

	idx := -1
	for i, t := range acct.Ledger {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := acct.Ledger[idx]
	acct.Ledger = append(acct.Ledger[:idx], acct.Ledger[idx+1:]...)
	acct.ReverseFromWallet(removed)

	if err := s.repo.Put(acct); err != nil {
		return err
	}
	sess.Account = acct

	s.log.Debug().Str("nickname", sess.Nickname).Str("id", id).Msg("Transaction removed")
	return nil
}

// AddCatalogItem appends a catalog item with no price set, the default
// payment method, quantity 1, unit display mode and an empty note.
// Blank names are rejected with ErrValidation.
func (s *Service) AddCatalogItem(sess *Session, name string) (*CatalogItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrValidation)
	}

	acct, err := s.load(sess)
	if err != nil {
		return nil, err
	}

	item := CatalogItem{
		Name:        name,
		UnitPrice:   nil, // price not set yet; distinct from zero
		Method:      MethodDinheiro,
		Quantity:    1,
		DisplayMode: DisplayUnit,
		Note:        "",
	}
	acct.Catalog = append(acct.Catalog, item)

	if err := s.repo.Put(acct); err != nil {
		return nil, err
	}
	sess.Account = acct

	return &item, nil
}

// CatalogItemUpdate carries the editable fields of a catalog item.
// UnitPrice nil clears the price back to the unset state.
type CatalogItemUpdate struct {
	UnitPrice   *Amount
	Method      PaymentMethod
	Quantity    int
	DisplayMode DisplayMode
	Note        string
}

// UpdateCatalogItem updates a catalog item in place. Quantity is coerced to
// at least 1 and the display mode falls back to unit when unrecognized.
func (s *Service) UpdateCatalogItem(sess *Session, index int, update CatalogItemUpdate) error {
	if !KnownMethod(update.Method) {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, update.Method)
	}

	acct, err := s.load(sess)
	if err != nil {
		return err
	}

	if index < 0 || index >= len(acct.Catalog) {
		return fmt.Errorf("%w: no catalog item at index %d", ErrValidation, index)
	}

	item := &acct.Catalog[index]
	item.UnitPrice = update.UnitPrice
	item.Method = update.Method
	item.Quantity = update.Quantity
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.DisplayMode = update.DisplayMode
	if item.DisplayMode != DisplayUnit && item.DisplayMode != DisplayTotal {
		item.DisplayMode = DisplayUnit
	}
	item.Note = update.Note

	if err := s.repo.Put(acct); err != nil {
		return err
	}
	sess.Account = acct

	return nil
}

// load performs the read half of a read-modify-write cycle: a fresh copy of
// the session's record straight from the store.
func (s *Service) load(sess *Session) (*Account, error) {
	acct, err := s.repo.Get(sess.Nickname)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}
