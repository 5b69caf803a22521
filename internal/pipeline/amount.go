package pipeline

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/aretw0/swapflow/pkg/domain"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Amount is a validated positive quantity in both representations.
type Amount struct {
	Decimal string
	Base    *big.Int
}

// ParseAmount validates user input and converts it into base units.
// A leading "." is read as "0.".
func ParseAmount(input string, decimals int) (Amount, error) {
	v := strings.TrimSpace(input)
	if strings.HasPrefix(v, ".") {
		v = "0" + v
	}
	if !decimalPattern.MatchString(v) {
		return Amount{}, domain.UserInput("Please enter a valid positive number, like 0.05.")
	}

	intPart, fracPart, _ := strings.Cut(v, ".")
	if len(fracPart) > decimals {
		return Amount{}, domain.UserInput(fmt.Sprintf("Too many decimal places. This token supports at most %d.", decimals))
	}

	combined := strings.TrimLeft(intPart+fracPart+strings.Repeat("0", decimals-len(fracPart)), "0")
	base := new(big.Int)
	if combined != "" {
		if _, ok := base.SetString(combined, 10); !ok {
			return Amount{}, domain.UserInput("Please enter a valid positive number, like 0.05.")
		}
	}
	if base.Sign() <= 0 {
		return Amount{}, domain.UserInput("Amount must be greater than zero.")
	}
	return Amount{Decimal: normalizeDecimal(v), Base: base}, nil
}

// AmountFromBase wraps a base-unit quantity, such as a full balance, without
// going through the decimal validator.
func AmountFromBase(base string, decimals int) (Amount, error) {
	n, ok := new(big.Int).SetString(base, 10)
	if !ok || n.Sign() <= 0 {
		return Amount{}, domain.UserInput("There is no balance to use.")
	}
	return Amount{Decimal: FormatUnits(base, decimals), Base: n}, nil
}

// CheckBalance rejects amounts above the cached balance, both in base units.
func CheckBalance(amount Amount, balanceBase string, decimals int, symbol string) error {
	balance, ok := new(big.Int).SetString(balanceBase, 10)
	if !ok {
		return domain.SessionState("cached balance is unreadable")
	}
	if amount.Base.Cmp(balance) > 0 {
		return domain.UserInput(fmt.Sprintf("Insufficient balance. You have %s %s.", FormatUnits(balanceBase, decimals), symbol))
	}
	return nil
}

// FormatUnits renders base units as a trimmed decimal string.
func FormatUnits(base string, decimals int) string {
	n, ok := new(big.Int).SetString(base, 10)
	if !ok {
		return "0"
	}
	s := n.String()
	if decimals <= 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

func normalizeDecimal(v string) string {
	intPart, fracPart, hasFrac := strings.Cut(v, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if !hasFrac {
		return intPart
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
