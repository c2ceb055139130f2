package geocode

import (
	"strings"
	"unicode"
)

// queryVariants builds the ordered list of search queries for an address:
// the strict query first, then the street without its leading house number,
// then the first three and first two street tokens with the city. Duplicate
// and empty variants are skipped.
func queryVariants(addr Address) []string {
	var variants []string
	seen := make(map[string]bool)
	add := func(q string) {
		if q != "" && !seen[q] {
			seen[q] = true
			variants = append(variants, q)
		}
	}

	add(addr.Query())

	street := stripHouseNumber(addr.Street)
	if street != addr.Street {
		loose := addr
		loose.Street = street
		add(loose.Query())
	}

	if addr.City != "" {
		for _, n := range []int{3, 2} {
			if prefix := tokenPrefix(street, n); prefix != "" {
				add(prefix + ", " + addr.City)
			}
		}
	}

	return variants
}

// stripHouseNumber drops leading numeric tokens ("12", "12bis", "3-5") from
// a street line.
func stripHouseNumber(street string) string {
	tokens := strings.Fields(street)
	for len(tokens) > 0 && startsWithDigit(tokens[0]) {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// tokenPrefix returns the first n whitespace-separated tokens of s, or ""
// when s has n tokens or fewer (the prefix would not loosen the query).
func tokenPrefix(s string, n int) string {
	tokens := strings.Fields(s)
	if len(tokens) <= n {
		return ""
	}
	return strings.Join(tokens[:n], " ")
}
