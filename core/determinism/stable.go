// Package determinism provides hashing and money primitives whose output
// never depends on map order or float rounding.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first eight hex characters
func (h ContentHash) Short() string {
	return h.Hex()[:8]
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// ParseContentHash decodes a 64 character hex digest
func ParseContentHash(s string) (ContentHash, error) {
	var h ContentHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("content hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Money is an amount in minor currency units carried at full precision
// until it is rounded. Never use float64 for money calculations.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney creates Money from a whole number of minor units
func NewMoney(minor int64, currency string) Money {
	return Money{amount: decimal.NewFromInt(minor), currency: currency}
}

// Add adds two monetary amounts
func (m Money) Add(other Money) Money {
	if m.currency != other.currency {
		panic(fmt.Sprintf("cannot add %s and %s", m.currency, other.currency))
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

// Percent returns pct percent of m, e.g. Percent(5) of 1000 is 50
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(decimal.NewFromInt(100)), currency: m.currency}
}

// RoundMinor rounds half away from zero to whole minor units
func (m Money) RoundMinor() Money {
	return Money{amount: m.amount.Round(0), currency: m.currency}
}

// Minor returns the whole minor units after rounding
func (m Money) Minor() int64 {
	return m.amount.Round(0).IntPart()
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
