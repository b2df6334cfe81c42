package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency is implicit for every amount on the platform.
const Currency = "ZAR"

// Cents is an amount of rand in minor units.
type Cents int64

// MaxAmount caps any single amount, R10 000 000.00. Fee arithmetic stays far from int64 limits below it.
const MaxAmount Cents = 1_000_000_000

func (c Cents) Rand() float64 {
	return float64(c) / 100
}

// String renders the amount as R1 234.50.
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	whole := strconv.FormatInt(int64(c)/100, 10)
	var out strings.Builder
	for i, r := range whole {
		if i != 0 && (len(whole)-i)%3 == 0 {
			out.WriteByte(' ')
		}
		out.WriteRune(r)
	}
	return fmt.Sprintf("%sR%s.%02d", sign, out.String(), int64(c)%100)
}

// ValidAmount reports whether c is a chargeable amount: positive and at most MaxAmount.
func ValidAmount(c Cents) bool {
	return c > 0 && c <= MaxAmount
}

// ParseRand parses "150", "150.5" or "150.50" into cents. More than two decimals is rejected,
// and so is anything beyond MaxAmount.
func ParseRand(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R"), "r")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, found := strings.Cut(s, ".")
	if !isDigits(whole) || (found && (len(frac) == 0 || len(frac) > 2 || !isDigits(frac))) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > int64(MaxAmount/100) {
		return 0, fmt.Errorf("amount %q: %w", s, ErrInvalidAmount)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	c := Cents(w*100 + f)
	if c > MaxAmount {
		return 0, fmt.Errorf("amount %q: %w", s, ErrInvalidAmount)
	}
	if neg {
		c = -c
	}
	return c, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
