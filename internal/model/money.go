package model

import (
    "errors"
    "fmt"
    "strconv"
    "strings"
)

// Cents is a monetary amount in currency minor units.  All money in the
// system is stored and computed as Cents; decimals only appear at the
// HTTP boundary.
type Cents int64

// ErrInvalidAmount is returned by ParseCents for malformed or negative input.
var ErrInvalidAmount = errors.New("invalid amount")

// Float renders the amount as a decimal for JSON responses.
func (c Cents) Float() float64 { return float64(c) / 100.0 }

// String formats the amount with exactly two fraction digits.
func (c Cents) String() string {
    sign := ""
    v := int64(c)
    if v < 0 {
        sign = "-"
        v = -v
    }
    return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseCents parses a non-negative decimal such as "100", "99.5" or
// "12.34".  More than two fraction digits are rejected rather than
// rounded.
func ParseCents(s string) (Cents, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return 0, nil
    }
    if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
        return 0, ErrInvalidAmount
    }
    whole, frac, hasFrac := strings.Cut(s, ".")
    if whole == "" {
        whole = "0"
    }
    if !digits(whole) || (hasFrac && !digits(frac)) {
        return 0, ErrInvalidAmount
    }
    w, err := strconv.ParseInt(whole, 10, 64)
    if err != nil {
        return 0, ErrInvalidAmount
    }
    var f int64
    if hasFrac {
        if len(frac) == 0 || len(frac) > 2 {
            return 0, ErrInvalidAmount
        }
        if len(frac) == 1 {
            frac += "0"
        }
        f, err = strconv.ParseInt(frac, 10, 64)
        if err != nil {
            return 0, ErrInvalidAmount
        }
    }
    if w > (1<<62)/100 {
        return 0, ErrInvalidAmount
    }
    return Cents(w*100 + f), nil
}

// digits reports whether s is non-empty and only ASCII digits.
func digits(s string) bool {
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

// CentsFromFloat converts a JSON decimal into Cents, rounding half away
// from zero.  Negative values are rejected.
func CentsFromFloat(v float64) (Cents, error) {
    if v < 0 {
        return 0, ErrInvalidAmount
    }
    return Cents(int64(v*100 + 0.5)), nil
}
