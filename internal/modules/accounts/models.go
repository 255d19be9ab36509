// Package accounts implements the account aggregate: the transaction ledger,
// the per-method wallet balances, and the price catalog for one user, plus
// the repository that persists whole account records keyed by nickname.
package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	// Backup documents carry amounts as bare JSON numbers (the format the
	// web shell has always written), not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// PaymentMethod identifies a spending/funding channel. The wallet is an open
// map so records imported with extra keys keep working, but the API boundary
// only accepts the known methods below.
type PaymentMethod string

// The six default payment methods. Every new account starts with a wallet
// zeroed for all of them.
const (
	MethodCredito  PaymentMethod = "credito"
	MethodDebito   PaymentMethod = "debito"
	MethodVR       PaymentMethod = "vr"
	MethodVA       PaymentMethod = "va"
	MethodVT       PaymentMethod = "vt"
	MethodDinheiro PaymentMethod = "dinheiro"
)

// DefaultMethods lists the default payment methods in wallet display order.
var DefaultMethods = []PaymentMethod{
	MethodCredito, MethodDebito, MethodVR, MethodVA, MethodVT, MethodDinheiro,
}

// methodLabels and methodForLabel form an explicit bidirectional mapping
// between internal keys and display labels. methodForLabel additionally
// accepts the legacy label aliases the shell has used over time.
var methodLabels = map[PaymentMethod]string{
	MethodCredito:  "Crédito",
	MethodDebito:   "Débito",
	MethodVR:       "VR",
	MethodVA:       "VA",
	MethodVT:       "VT",
	MethodDinheiro: "Dinheiro",
}

var methodForLabel = map[string]PaymentMethod{
	"Crédito":          MethodCredito,
	"Cartão - Crédito": MethodCredito,
	"Débito":           MethodDebito,
	"Cartão - Débito":  MethodDebito,
	"VR":               MethodVR,
	"Vale Refeição":    MethodVR,
	"VA":               MethodVA,
	"Vale Alimentação": MethodVA,
	"VT":               MethodVT,
	"Vale Transporte":  MethodVT,
	"Dinheiro":         MethodDinheiro,
}

// MethodLabel returns the display label for a payment method key.
// Unknown keys (from imported records) are returned as-is.
func MethodLabel(m PaymentMethod) string {
	if label, ok := methodLabels[m]; ok {
		return label
	}
	return string(m)
}

// MethodForLabel resolves a display label back to its internal key.
func MethodForLabel(label string) (PaymentMethod, bool) {
	m, ok := methodForLabel[strings.TrimSpace(label)]
	return m, ok
}

// KnownMethod reports whether m is one of the default payment methods.
func KnownMethod(m PaymentMethod) bool {
	_, ok := methodLabels[m]
	return ok
}

// Amount is a decimal currency amount. It round-trips through msgpack as a
// string (exact) and through JSON as a bare number, matching the backup
// document format.
type Amount struct {
	decimal.Decimal
}

var (
	_ msgpack.CustomEncoder = Amount{}
	_ msgpack.CustomDecoder = (*Amount)(nil)
)

// ZeroAmount returns an Amount of zero.
func ZeroAmount() Amount {
	return Amount{decimal.Zero}
}

// NewAmount builds an Amount from a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d}
}

// AmountFromString parses a decimal string ("4.5", "-10.00") into an Amount.
func AmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d}, nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{a.Decimal.Add(b.Decimal)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{a.Decimal.Sub(b.Decimal)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{a.Decimal.Neg()}
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{a.Decimal.Mul(b.Decimal)}
}

// Equal reports whether two amounts represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

// EncodeMsgpack encodes the amount as its exact decimal string form.
func (a Amount) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(a.Decimal.String())
}

// DecodeMsgpack decodes an amount from its decimal string form.
func (a *Amount) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	a.Decimal = d
	return nil
}

// NormalizeAmount converts raw currency input ("R$ 4,50", "4.50", "450") to
// an Amount the way the shell's input mask does: strip everything that is
// not a digit, then divide by 100. Returns ErrValidation when no digits
// remain or the result is not positive.
func NormalizeAmount(raw string) (Amount, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return Amount{}, fmt.Errorf("%w: amount %q has no digits", ErrValidation, raw)
	}

	d, err := decimal.NewFromString(digits.String())
	if err != nil {
		return Amount{}, fmt.Errorf("%w: amount %q is not numeric", ErrValidation, raw)
	}

	amount := Amount{d.Shift(-2)}
	if !amount.IsPositive() {
		return Amount{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return amount, nil
}

// Kind classifies a transaction as income or expense.
type Kind string

// Transaction kinds.
const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// ValidKind reports whether k is a recognized transaction kind.
func ValidKind(k Kind) bool {
	return k == KindIncome || k == KindExpense
}

// Transaction is one ledger entry. Its effect on wallet[Method] is +Amount
// for income and -Amount for expense, applied exactly once at creation and
// reversed exactly once at deletion.
type Transaction struct {
	ID          string        `json:"id" msgpack:"id"`
	Description string        `json:"description" msgpack:"description"`
	Amount      Amount        `json:"amount" msgpack:"amount"`
	Kind        Kind          `json:"kind" msgpack:"kind"`
	Method      PaymentMethod `json:"paymentMethod" msgpack:"paymentMethod"`
	CreatedAt   time.Time     `json:"createdAt" msgpack:"createdAt"`
}

// Signed returns the transaction's effect on its wallet balance.
func (t Transaction) Signed() Amount {
	if t.Kind == KindIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// DisplayMode selects whether a catalog item shows its unit price or the
// unit price multiplied by quantity.
type DisplayMode string

// Catalog display modes.
const (
	DisplayUnit  DisplayMode = "unit"
	DisplayTotal DisplayMode = "total"
)

// CatalogItem is one entry of the user-maintained price list. UnitPrice is
// nil while the price has not been set; nil and zero are distinct states.
type CatalogItem struct {
	Name        string        `json:"name" msgpack:"name"`
	UnitPrice   *Amount       `json:"unitPrice" msgpack:"unitPrice"`
	Method      PaymentMethod `json:"paymentMethod" msgpack:"paymentMethod"`
	Quantity    int           `json:"quantity" msgpack:"quantity"`
	DisplayMode DisplayMode   `json:"displayMode" msgpack:"displayMode"`
	Note        string        `json:"note" msgpack:"note"`
}

// DisplayValue derives the value shown for the item. ok is false while the
// price is unset, in which case the boundary renders the "—" sentinel.
func (c CatalogItem) DisplayValue() (Amount, bool) {
	if c.UnitPrice == nil {
		return Amount{}, false
	}
	if c.DisplayMode == DisplayTotal {
		qty := c.Quantity
		if qty < 1 {
			qty = 1
		}
		return c.UnitPrice.Mul(NewAmount(decimal.NewFromInt(int64(qty)))), true
	}
	return *c.UnitPrice, true
}

// Account is the complete persisted state for one user. The nickname is the
// primary key and is immutable once created.
type Account struct {
	Nickname       string                   `json:"nickname" msgpack:"nickname"`
	PasswordDigest string                   `json:"passwordDigest" msgpack:"passwordDigest"`
	Ledger         []Transaction            `json:"ledger" msgpack:"ledger"`
	Wallet         map[PaymentMethod]Amount `json:"wallet" msgpack:"wallet"`
	Catalog        []CatalogItem            `json:"catalog" msgpack:"catalog"`
}

// DefaultWallet returns a wallet zeroed for all default payment methods.
func DefaultWallet() map[PaymentMethod]Amount {
	wallet := make(map[PaymentMethod]Amount, len(DefaultMethods))
	for _, m := range DefaultMethods {
		wallet[m] = ZeroAmount()
	}
	return wallet
}

// NewAccount builds a fresh account: zeroed default wallet, empty ledger,
// empty catalog.
func NewAccount(nickname, passwordDigest string) *Account {
	return &Account{
		Nickname:       nickname,
		PasswordDigest: passwordDigest,
		Ledger:         []Transaction{},
		Wallet:         DefaultWallet(),
		Catalog:        []CatalogItem{},
	}
}

// Normalize back-fills absent collections. Applied after decoding stored or
// imported records so older/partial documents behave like complete ones.
func (a *Account) Normalize() {
	if a.Ledger == nil {
		a.Ledger = []Transaction{}
	}
	if a.Catalog == nil {
		a.Catalog = []CatalogItem{}
	}
	if a.Wallet == nil {
		a.Wallet = DefaultWallet()
	}
}

// ApplyToWallet applies a transaction's signed amount to its wallet balance,
// creating the key at zero first when the record carries a method the
// default wallet does not know (imported documents).
func (a *Account) ApplyToWallet(t Transaction) {
	balance, ok := a.Wallet[t.Method]
	if !ok {
		balance = ZeroAmount()
	}
	a.Wallet[t.Method] = balance.Add(t.Signed())
}

// ReverseFromWallet undoes a transaction's wallet effect.
func (a *Account) ReverseFromWallet(t Transaction) {
	balance, ok := a.Wallet[t.Method]
	if !ok {
		balance = ZeroAmount()
	}
	a.Wallet[t.Method] = balance.Sub(t.Signed())
}

// ComputeBalance returns the signed sum over the whole ledger. It is derived
// independently from the wallet and must always equal WalletTotal.
func (a *Account) ComputeBalance() Amount {
	total := ZeroAmount()
	for _, t := range a.Ledger {
		total = total.Add(t.Signed())
	}
	return total
}

// WalletTotal returns the sum of all wallet balances.
func (a *Account) WalletTotal() Amount {
	total := ZeroAmount()
	for _, balance := range a.Wallet {
		total = total.Add(balance)
	}
	return total
}
