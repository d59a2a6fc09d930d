// Package money converts and formats CLP amounts. Amounts are carried as
// int64 whole pesos (CLP has no fractional unit in practice); the USD
// equivalent uses a fixed mock rate.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Mock exchange rate, pesos per dollar.
const clpPerUSD = 950

var (
	ErrNotANumber  = errors.New("amount is not a number")
	ErrNotPositive = errors.New("amount must be positive")
	ErrNotWholeCLP = errors.New("amount must be a whole number of pesos")
	ErrOutOfRange  = errors.New("amount out of range")
)

// ParseCLP parses user input into whole pesos. Thousand separators common in
// chat input (dots, spaces) are tolerated; "$" prefixes are not.
func ParseCLP(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}

	if !d.IsPositive() {
		return 0, ErrNotPositive
	}

	if !d.IsInteger() {
		return 0, ErrNotWholeCLP
	}

	if !d.BigInt().IsInt64() {
		return 0, ErrOutOfRange
	}

	return d.IntPart(), nil
}

// ConvertCLPToUSD returns the USD equivalent rounded to cents.
func ConvertCLPToUSD(amountCLP int64) decimal.Decimal {
	return decimal.NewFromInt(amountCLP).DivRound(decimal.NewFromInt(clpPerUSD), 2)
}

func FormatCLP(amountCLP int64) string {
	return gomoney.New(amountCLP, gomoney.CLP).Display()
}

func FormatUSD(usd decimal.Decimal) string {
	return gomoney.New(usd.Shift(2).Round(0).IntPart(), gomoney.USD).Display()
}
