// Package respond renders resolver results as the sentence spoken back to
// the caller.
package respond

import (
	"fmt"
	"strings"
	"unicode"
)

// NoResultsMessage is returned when nothing matched the query
const NoResultsMessage = "I couldn't find any hospitals matching your query. Could you please provide more details or specify a city?"

// confirmKeywords mark a query asking whether a hospital is in network.
// Matched as substrings of the lower-cased query.
var confirmKeywords = []string{"confirm", "check", "verify", "is", "network"}

// Hospital is the part of a result the formatter reads
type Hospital struct {
	Name    string
	Address string
	City    string
}

// Format renders results for query. It is a pure function of its inputs.
// Names and cities are title-cased here; addresses are spoken as stored.
func Format(query string, results []Hospital) string {
	if len(results) == 0 {
		return NoResultsMessage
	}

	if isConfirmation(query) {
		h := results[0]
		return fmt.Sprintf("Yes, %s in %s is part of your network. It's located at %s.",
			TitleCase(h.Name), TitleCase(h.City), h.Address)
	}

	if len(results) == 1 {
		h := results[0]
		return fmt.Sprintf("I found %s in %s, located at %s.",
			TitleCase(h.Name), TitleCase(h.City), h.Address)
	}

	area := "your area"
	if results[0].City != "" {
		area = TitleCase(results[0].City)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d hospitals around %s:\n\n", len(results), area)
	for i, h := range results {
		fmt.Fprintf(&b, "%d. %s, located at %s, %s.\n", i+1, TitleCase(h.Name), h.Address, TitleCase(h.City))
	}

	return strings.TrimSpace(b.String())
}

func isConfirmation(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range confirmKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// TitleCase upper-cases the first cased letter of every run of cased
// letters and lower-cases the rest. Any other rune starts a new run, so
// "st. john's" becomes "St. John'S" and "ab日cd" becomes "Ab日Cd".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevCased := false
	for _, r := range s {
		if isCased(r) {
			if prevCased {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevCased = true
			continue
		}
		b.WriteRune(r)
		prevCased = false
	}

	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}
