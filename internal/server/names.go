package server

import (
	"strings"
	"unicode"
)

// DisplayName capitalizes a waste type name for display. The source
// reports names in all caps ("BIO", "METALE I TWORZYWA"); multi-word
// all-caps names become title case, anything else gets only its first
// letter raised.
func DisplayName(name string) string {
	if name == "" {
		return name
	}
	upper := 0
	for _, r := range name {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if upper > 1 {
		return titleCase(name)
	}
	return capitalizeFirst(name)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = capitalizeFirst(w)
	}
	return strings.Join(words, " ")
}

func capitalizeFirst(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
