// README: Top-up rules and the invoice payload format.
package driver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"driverbot/internal/types"
)

// MaxInvoiceAmount keeps MinorUnits within a 32-bit int.
const MaxInvoiceAmount = math.MaxInt32 / 100

type PaymentRules struct {
	// Amounts up to and including MinTopUp are rejected.
	MinTopUp int64
	// MaxTopUp is the largest accepted amount; zero or anything above
	// MaxInvoiceAmount means MaxInvoiceAmount.
	MaxTopUp int64
	Presets  []int64
	Currency string
}

func (r PaymentRules) normalized() PaymentRules {
	if r.MinTopUp <= 0 {
		r.MinTopUp = 25000
	}
	if len(r.Presets) == 0 {
		r.Presets = []int64{70000, 140000, 210000, 280000}
	}
	if r.Currency == "" {
		r.Currency = types.DefaultCurrency
	}
	return r
}

// MaxAmount is the effective upper bound for one top-up.
func (r PaymentRules) MaxAmount() int64 {
	if r.MaxTopUp <= 0 || r.MaxTopUp > MaxInvoiceAmount {
		return MaxInvoiceAmount
	}
	return r.MaxTopUp
}

func (r PaymentRules) Validate(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount <= r.MinTopUp {
		return ErrBelowMinimum
	}
	if amount > r.MaxAmount() {
		return ErrAboveMaximum
	}
	return nil
}

// ParseAmountInput accepts digits with optional spaces: "150 000".
func ParseAmountInput(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrInvalidAmount
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// PresetAmount converts a sum_<n> callback value (thousands) to sum.
func PresetAmount(thousands string) (int64, error) {
	n, err := strconv.ParseInt(thousands, 10, 64)
	if err != nil || n <= 0 || n > MaxInvoiceAmount/1000 {
		return 0, ErrInvalidAmount
	}
	return n * 1000, nil
}

// MinorUnits converts sum to the minor units Telegram invoices use.
func MinorUnits(amount int64) int {
	return int(amount * 100)
}

func FromMinorUnits(total int) int64 {
	return int64(total) / 100
}

func InvoicePayload(chatID types.ChatID, amount int64) string {
	return fmt.Sprintf("driver:%d:amount:%d", chatID, amount)
}

func ParseInvoicePayload(p string) (types.ChatID, int64, error) {
	parts := strings.Split(p, ":")
	if len(parts) != 4 || parts[0] != "driver" || parts[2] != "amount" {
		return 0, 0, ErrBadPayload
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, ErrBadPayload
	}
	amount, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, ErrBadPayload
	}
	return types.ChatID(chatID), amount, nil
}
