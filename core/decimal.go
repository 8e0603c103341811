package core

// decimal.go – fixed-point decimal types used throughout the payload
// codec and resource subsystem. Decimal is the 192-bit signed,
// 18-fractional-digit type used for fungible amounts; PreciseDecimal is
// the 256-bit, 36-fractional-digit type used where rounding error from
// repeated multiplication would otherwise compound (AMM-style pricing).
//
// Both are backed by math/big rather than machine words, to keep
// arithmetic deterministic across platforms.

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	decimalScale        = 18
	preciseDecimalScale = 36
)

var (
	decimalScaleFactor        = pow10(decimalScale)
	preciseDecimalScaleFactor = pow10(preciseDecimalScale)
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Decimal is a signed fixed-point number with 18 fractional digits,
// stored as an integer number of "atto" units (value * 10^18).
type Decimal struct {
	atto *big.Int
}

// DecimalFromInt64 builds a Decimal from a whole number.
func DecimalFromInt64(v int64) Decimal {
	return Decimal{atto: new(big.Int).Mul(big.NewInt(v), decimalScaleFactor)}
}

// DecimalZero is the additive identity.
func DecimalZero() Decimal { return Decimal{atto: big.NewInt(0)} }

// DecimalFromAtto constructs a Decimal directly from its atto-unit
// integer representation (used by the payload codec on decode).
func DecimalFromAtto(atto *big.Int) Decimal {
	return Decimal{atto: new(big.Int).Set(atto)}
}

// Atto returns the underlying atto-unit integer (value * 10^18).
func (d Decimal) Atto() *big.Int { return new(big.Int).Set(d.atto) }

func (d Decimal) IsZero() bool { return d.atto.Sign() == 0 }
func (d Decimal) Sign() int    { return d.atto.Sign() }

func (d Decimal) Add(o Decimal) Decimal { return Decimal{atto: new(big.Int).Add(d.atto, o.atto)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{atto: new(big.Int).Sub(d.atto, o.atto)} }

// Mul multiplies two Decimals, truncating the result back to 18
// fractional digits (this is where precision loss comes from, and why
// PreciseDecimal exists for chained multiplication).
func (d Decimal) Mul(o Decimal) Decimal {
	prod := new(big.Int).Mul(d.atto, o.atto)
	return Decimal{atto: new(big.Int).Quo(prod, decimalScaleFactor)}
}

// Cmp compares two Decimals the way big.Int.Cmp does.
func (d Decimal) Cmp(o Decimal) int { return d.atto.Cmp(o.atto) }

// LessThan, GreaterThan, Equal are convenience wrappers over Cmp used
// pervasively by the resource subsystem's invariant checks.
func (d Decimal) LessThan(o Decimal) bool    { return d.Cmp(o) < 0 }
func (d Decimal) GreaterThan(o Decimal) bool { return d.Cmp(o) > 0 }
func (d Decimal) Equal(o Decimal) bool       { return d.Cmp(o) == 0 }

// RoundToDivisibility truncates toward zero at the given number of
// fractional digits. This is the rule for `take`: truncation means a
// container can never emit more value than it holds by rounding up.
func (d Decimal) RoundToDivisibility(divisibility uint8) Decimal {
	if divisibility >= decimalScale {
		return d
	}
	drop := pow10(decimalScale - int(divisibility))
	q := new(big.Int).Quo(d.atto, drop)
	return Decimal{atto: new(big.Int).Mul(q, drop)}
}

// RoundHalfToEven implements banker's rounding at the given number of
// fractional digits; used by merge/display paths, never by `take`.
func (d Decimal) RoundHalfToEven(divisibility uint8) Decimal {
	if divisibility >= decimalScale {
		return d
	}
	drop := pow10(decimalScale - int(divisibility))
	q, r := new(big.Int).QuoRem(d.atto, drop, new(big.Int))
	twiceR := new(big.Int).Mul(new(big.Int).Abs(r), big.NewInt(2))
	cmp := twiceR.Cmp(drop)
	if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
		if d.atto.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return Decimal{atto: new(big.Int).Mul(q, drop)}
}

func (d Decimal) String() string { return formatFixed(d.atto, decimalScale) }

// DecimalFromString parses a base-10 string with up to 18 fractional
// digits (e.g. "12.5", "-3") into a Decimal. Used where amounts are
// authored as human-readable decimal text — manifest/fixture files and
// CLI flags — rather than constructed in code.
func DecimalFromString(s string) (Decimal, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > decimalScale {
		return Decimal{}, fmt.Errorf("decimal: too many fractional digits in %q", s)
	}
	for len(fracPart) < decimalScale {
		fracPart += "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	combined, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid decimal string %q", s)
	}
	if neg {
		combined.Neg(combined)
	}
	return Decimal{atto: combined}, nil
}

// PreciseDecimal is a signed fixed-point number with 36 fractional
// digits, stored as value * 10^36.
type PreciseDecimal struct {
	units *big.Int
}

func PreciseDecimalFromInt64(v int64) PreciseDecimal {
	return PreciseDecimal{units: new(big.Int).Mul(big.NewInt(v), preciseDecimalScaleFactor)}
}

func PreciseDecimalFromUnits(units *big.Int) PreciseDecimal {
	return PreciseDecimal{units: new(big.Int).Set(units)}
}

func (p PreciseDecimal) Units() *big.Int { return new(big.Int).Set(p.units) }

func (p PreciseDecimal) Add(o PreciseDecimal) PreciseDecimal {
	return PreciseDecimal{units: new(big.Int).Add(p.units, o.units)}
}

func (p PreciseDecimal) Mul(o PreciseDecimal) PreciseDecimal {
	prod := new(big.Int).Mul(p.units, o.units)
	return PreciseDecimal{units: new(big.Int).Quo(prod, preciseDecimalScaleFactor)}
}

func (p PreciseDecimal) String() string { return formatFixed(p.units, preciseDecimalScale) }

func formatFixed(v *big.Int, scale int) string {
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	s := abs.String()
	for len(s) <= scale {
		s = "0" + s
	}
	intPart := s[:len(s)-scale]
	fracPart := s[len(s)-scale:]
	out := fmt.Sprintf("%s.%s", intPart, fracPart)
	if neg {
		out = "-" + out
	}
	return out
}
