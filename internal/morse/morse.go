// Package morse encodes text into proportionally timed on/off symbols and
// plays them back one poll tick at a time. It drives both the keyed
// identification tone and the status LED.
// This package has NO external dependencies; time is always passed in.
package morse

import (
	"strings"
	"unicode"
)

// Symbol is a single timed element: key down (dit/dah) or key up (gap).
// Weight is the duration in dot units.
type Symbol struct {
	Weight  int
	KeyDown bool
}

// The five element kinds. Gaps between the elements of one character are
// SymbolBreak, between characters CharBreak, between words WordBreak.
var (
	Dit         = Symbol{1, true}
	Dah         = Symbol{3, true}
	SymbolBreak = Symbol{1, false}
	CharBreak   = Symbol{3, false}
	WordBreak   = Symbol{7, false}
)

// Code is the character-to-pattern table. Characters not present encode to
// nothing and are skipped silently.
var Code = map[rune][]Symbol{
	'a': {Dit, Dah},
	'b': {Dah, Dit, Dit, Dit},
	'c': {Dah, Dit, Dah, Dit},
	'd': {Dah, Dit, Dit},
	'e': {Dit},
	'f': {Dit, Dit, Dah, Dit},
	'g': {Dah, Dah, Dit},
	'h': {Dit, Dit, Dit, Dit},
	'i': {Dit, Dit},
	'j': {Dit, Dah, Dah, Dah},
	'k': {Dah, Dit, Dah},
	'l': {Dit, Dah, Dit, Dit},
	'm': {Dah, Dah},
	'n': {Dah, Dit},
	'o': {Dah, Dah, Dah},
	'p': {Dit, Dah, Dah, Dit},
	'q': {Dah, Dah, Dit, Dah},
	'r': {Dit, Dah, Dit},
	's': {Dit, Dit, Dit},
	't': {Dah},
	'u': {Dit, Dit, Dah},
	'v': {Dit, Dit, Dit, Dah},
	'w': {Dit, Dah, Dah},
	'x': {Dah, Dit, Dit, Dah},
	'y': {Dah, Dit, Dah, Dah},
	'z': {Dah, Dah, Dit, Dit},

	'0': {Dah, Dah, Dah, Dah, Dah},
	'1': {Dit, Dah, Dah, Dah, Dah},
	'2': {Dit, Dit, Dah, Dah, Dah},
	'3': {Dit, Dit, Dit, Dah, Dah},
	'4': {Dit, Dit, Dit, Dit, Dah},
	'5': {Dit, Dit, Dit, Dit, Dit},
	'6': {Dah, Dit, Dit, Dit, Dit},
	'7': {Dah, Dah, Dit, Dit, Dit},
	'8': {Dah, Dah, Dah, Dit, Dit},
	'9': {Dah, Dah, Dah, Dah, Dit},

	'/': {Dah, Dit, Dit, Dah, Dit},
	'-': {Dah, Dit, Dit, Dit, Dit, Dah},
	'=': {Dah, Dit, Dit, Dit, Dah},
	'+': {Dit, Dah, Dit, Dah, Dit},
	'.': {Dit, Dah, Dit, Dah, Dit, Dah},
	',': {Dah, Dah, Dit, Dit, Dah, Dah},
	'?': {Dit, Dit, Dah, Dah, Dit, Dit},
	'@': {Dit, Dah, Dah, Dit, Dah, Dit},
}

// Encode converts text into a flat symbol pattern with the standard
// proportional gaps interleaved: one dot between elements, three between
// characters, seven between words. The first symbol of a non-empty pattern
// is always key-down and the last is always a WordBreak. Unknown characters
// are skipped without emission.
func Encode(text string) []Symbol {
	normalized := strings.ToLower(text)
	pattern := make([]Symbol, 0, 8*len(normalized))
	wasWhitespace := true
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			if !wasWhitespace {
				pattern = append(pattern, WordBreak)
			}
			wasWhitespace = true
			continue
		}

		code, known := Code[r]
		if !known {
			continue
		}
		if !wasWhitespace {
			pattern = append(pattern, CharBreak)
		}
		for i, s := range code {
			if i > 0 {
				pattern = append(pattern, SymbolBreak)
			}
			pattern = append(pattern, s)
		}
		wasWhitespace = false
	}
	if !wasWhitespace {
		pattern = append(pattern, WordBreak)
	}
	return pattern
}

// WeightSum returns the total duration of a pattern in dot units.
func WeightSum(pattern []Symbol) int {
	sum := 0
	for _, s := range pattern {
		sum += s.Weight
	}
	return sum
}
