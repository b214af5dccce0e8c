package language

import "unicode"

func isIndic(r rune) bool {
	switch {
	case r >= 0x0900 && r <= 0x097F: // Devanagari
		return true
	case r >= 0x0980 && r <= 0x09FF: // Bengali
		return true
	case r >= 0x0A00 && r <= 0x0A7F: // Gurmukhi
		return true
	case r >= 0x0A80 && r <= 0x0AFF: // Gujarati
		return true
	}
	return false
}

func isLatin(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}

// Scripts reports which of the Latin and Indic scripts appear in text.
func Scripts(text string) (latin, indic bool) {
	for _, r := range text {
		if !latin && isLatin(r) {
			latin = true
		} else if !indic && isIndic(r) {
			indic = true
		}
		if latin && indic {
			return
		}
	}
	return
}

// HasMixedScripts reports whether text mixes Latin letters with an Indic script.
func HasMixedScripts(text string) bool {
	latin, indic := Scripts(text)
	return latin && indic
}
