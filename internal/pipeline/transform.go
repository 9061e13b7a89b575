// internal/pipeline/transform.go
package pipeline

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/valpere/listingharvest/pkg/types"
)

// Canonicalize derives the identity key from a source address: everything
// from the first '#' is dropped, surrounding whitespace and trailing '/' are
// removed, and the result is lower-cased. It is idempotent.
func Canonicalize(address string) string {
	if i := strings.IndexByte(address, '#'); i >= 0 {
		address = address[:i]
	}
	address = strings.TrimSpace(address)
	address = strings.TrimRightFunc(address, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
	return strings.ToLower(address)
}

// ParsePrice reads an integer price written with '.' thousands separators.
// ok is false for empty, unparsable or negative input.
func ParsePrice(s string) (price int64, ok bool) {
	s = strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseRating reads a decimal rating that may use ',' as the decimal mark.
// Anything unparsable is 0.
func ParseRating(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ParseCount reads a count such as "(120)". Anything unparsable is 0.
func ParseCount(s string) int64 {
	s = strings.Map(func(r rune) rune {
		if r == '(' || r == ')' || r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Clean coerces a candidate into a CleanRecord. ok is false when the name or
// key is empty or the price cannot be read; rating and count fall back to 0.
func Clean(c types.RawCandidate) (types.CleanRecord, bool) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return types.CleanRecord{}, false
	}

	key := Canonicalize(c.SourceAddress)
	if key == "" {
		return types.CleanRecord{}, false
	}

	price, ok := ParsePrice(c.Price)
	if !ok {
		return types.CleanRecord{}, false
	}

	return types.CleanRecord{
		Name:        name,
		Price:       price,
		Rating:      ParseRating(c.Rating),
		RatingCount: ParseCount(c.RatingCount),
		Description: strings.TrimSpace(c.Description),
		Key:         key,
	}, true
}
