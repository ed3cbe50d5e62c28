// Package identifier produces the human-facing identifiers of catalogue
// records: product slugs, SKUs and legacy category tags.
package identifier

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// SKUPrefix is the literal prefix of every generated SKU
	SKUPrefix = "PRD"

	skuSuffixLength = 5
	skuAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// MaxTagLength mirrors the tag column width
	MaxTagLength = 50
)

var (
	// whitespace includes vertical tab, Unicode spaces such as NBSP and the BOM
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s\v\p{Z}\x{FEFF}]`)
	whitespace   = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// Slug derives a product slug from its display name and creation instant.
// "Kids' Toy Box!!" created at T becomes "kids-toy-box-<T in epoch millis>".
func Slug(name string, at time.Time) string {
	base := strings.ToLower(name)
	base = nonSlugChars.ReplaceAllString(base, "")
	base = whitespace.ReplaceAllString(base, "-")
	base = hyphenRuns.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	return base + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// SKU generates PRD-<epoch millis>-<5 random uppercase alphanumerics>.
// The suffix is drawn per call, so two SKUs minted in the same millisecond
// only collide with negligible probability.
func SKU(at time.Time) string {
	suffix := make([]byte, skuSuffixLength)
	for i := range suffix {
		suffix[i] = skuAlphabet[rand.Intn(len(skuAlphabet))]
	}

	return SKUPrefix + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + string(suffix)
}

// Tag converts a category name into the legacy kebab-case tag form.
func Tag(name string) string {
	tag := strings.ToLower(strings.TrimSpace(name))
	tag = strings.ReplaceAll(tag, "&", "and")
	tag = whitespace.ReplaceAllString(tag, "-")
	tag = hyphenRuns.ReplaceAllString(tag, "-")

	if runes := []rune(tag); len(runes) > MaxTagLength {
		tag = strings.TrimRight(string(runes[:MaxTagLength]), "-")
	}

	return tag
}

// NormalizeTag applies the storage form to a caller-supplied tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
