package espeak

import (
	"strings"
	"unicode/utf8"
)

const (
	hundred       = "hˈʌndɹɪd"
	ninety        = "nˈaɪnti"
	ninetyFlapped = "nˈaɪndi"
	lengthMark    = 'ː'
)

// zMergeFollowers may follow a detached " z" for it to join the previous word.
const zMergeFollowers = `;:,.!?¡¿—…"«»“” `

var (
	kokoroReplacer = strings.NewReplacer(
		"kəkˈoːɹoʊ", "kˈoʊkəɹoʊ",
		"kəkˈɔːɹəʊ", "kˈəʊkəɹəʊ",
	)

	symbolReplacer = strings.NewReplacer(
		"ʲ", "j",
		"r", "ɹ",
		"x", "k",
		"ɬ", "l",
	)
)

// PostProcess rewrites raw espeak IPA into the symbol set the speech model
// was trained on.
func PostProcess(phonemes, voice string) string {
	phonemes = kokoroReplacer.Replace(phonemes)
	phonemes = symbolReplacer.Replace(phonemes)
	phonemes = replaceInContext(phonemes, hundred, " "+hundred, func(before, _ string) bool {
		r, size := utf8.DecodeLastRuneInString(before)

		return size > 0 && ((r >= 'a' && r <= 'z') || r == 'ɹ' || r == lengthMark)
	})
	phonemes = replaceInContext(phonemes, " z", "z", func(_, after string) bool {
		r, size := utf8.DecodeRuneInString(after)

		return size == 0 || strings.ContainsRune(zMergeFollowers, r)
	})

	if voice == VoiceAmerican {
		phonemes = replaceInContext(phonemes, ninety, ninetyFlapped, func(_, after string) bool {
			r, size := utf8.DecodeRuneInString(after)

			return size == 0 || r != lengthMark
		})
	}

	return strings.TrimSpace(phonemes)
}

// replaceInContext replaces each non-overlapping occurrence of target for
// which accept holds. accept sees the input before and after the occurrence,
// so neighbouring text is inspected without being consumed and adjacent
// occurrences are all considered.
func replaceInContext(s, target, replacement string, accept func(before, after string) bool) string {
	if !strings.Contains(s, target) {
		return s
	}

	var out strings.Builder

	out.Grow(len(s))

	rest := 0

	for {
		idx := strings.Index(s[rest:], target)
		if idx < 0 {
			break
		}

		start := rest + idx
		end := start + len(target)

		out.WriteString(s[rest:start])

		if accept(s[:start], s[end:]) {
			out.WriteString(replacement)
		} else {
			out.WriteString(target)
		}

		rest = end
	}

	out.WriteString(s[rest:])

	return out.String()
}
