package document

import "unicode"

// CountWords counts tokens in text. CJK characters count one each; runs of
// other non-space characters count as one token. The count is stable across
// calls and monotonic in text length, which the placement thresholds rely on.
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			if inWord {
				count++
				inWord = false
			}
			count++
		case unicode.IsSpace(r):
			if inWord {
				count++
				inWord = false
			}
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}
	return count
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
