package espeak

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// punctuationMarks are kept in the phoneme output. espeak itself drops them.
const punctuationMarks = `;:,.!?¡¿—…"«»“”(){}[]`

type segment struct {
	text string
	mark bool
}

func isMark(r rune) bool {
	return strings.ContainsRune(punctuationMarks, r)
}

// splitPunctuation cuts text into alternating runs of marks and non-marks.
func splitPunctuation(text string) []segment {
	var (
		segments []segment
		current  strings.Builder
		inMark   bool
	)

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, segment{text: current.String(), mark: inMark})
			current.Reset()
		}
	}

	for _, r := range text {
		if mark := isMark(r); mark != inMark {
			flush()
			inMark = mark
		}

		current.WriteRune(r)
	}

	flush()

	return segments
}

// restorePunctuation phonemizes every non-mark run and joins the results with
// the marks. A mark sticks to the preceding word unless whitespace separated
// them in the input. Whitespace between runs collapses to one space.
func restorePunctuation(segments []segment, phonemize func(chunk string) (string, error)) (string, error) {
	var (
		out          strings.Builder
		pendingSpace bool
	)

	for _, seg := range segments {
		if seg.mark {
			if pendingSpace && out.Len() > 0 {
				out.WriteByte(' ')
			}

			out.WriteString(seg.text)

			pendingSpace = false

			continue
		}

		leading := startsWithSpace(seg.text)
		trailing := endsWithSpace(seg.text)

		chunk := strings.TrimSpace(seg.text)
		if chunk == "" {
			pendingSpace = true

			continue
		}

		phonemes, err := phonemize(chunk)
		if err != nil {
			return "", err
		}

		if phonemes == "" {
			pendingSpace = pendingSpace || leading || trailing

			continue
		}

		if (leading || pendingSpace) && out.Len() > 0 {
			out.WriteByte(' ')
		}

		out.WriteString(phonemes)

		pendingSpace = trailing
	}

	return out.String(), nil
}

func startsWithSpace(s string) bool {
	r, size := utf8.DecodeRuneInString(s)

	return size > 0 && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)

	return len(trimmed) < len(s)
}
