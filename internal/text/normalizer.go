// Package text normalizes input text before phonemization.
//
// Normalization expands forms that a phonemizer reads poorly: abbreviations,
// integers and typographic punctuation. It never removes words.
package text

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// NumberBaseTen represents the base for decimal number system.
	NumberBaseTen = 10
	// NumberBaseTwenty represents the boundary for teen numbers.
	NumberBaseTwenty = 20
	// NumberBaseHundred represents the base for hundreds.
	NumberBaseHundred = 100
	// NumberBaseThousand represents the base for thousands.
	NumberBaseThousand = 1000
	// MaxNumberForWords represents the maximum number that can be converted to words.
	MaxNumberForWords = 999999
)

const (
	numberRegexPattern     = `\d+`
	whitespaceRegexPattern = `\s+`
	urlRegexPattern        = `https?://\S+`
)

var (
	ones = []string{
		"", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}
	teens = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tens = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

// Normalizer rewrites text into a form espeak pronounces predictably.
type Normalizer struct {
	numberPattern        *regexp.Regexp
	whitespacePattern    *regexp.Regexp
	urlPattern           *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewNormalizer creates a Normalizer with compiled patterns and replacers.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		numberPattern:     regexp.MustCompile(numberRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		abbreviationReplacer: strings.NewReplacer(
			"Mr.", "Mister",
			"Mrs.", "Missus",
			"Ms.", "Miss",
			"Dr.", "Doctor",
			"St.", "Saint",
			"Co.", "Company",
			"Ltd.", "Limited",
			"Corp.", "Corporation",
			"Inc.", "Incorporated",
			"etc.", "et cetera",
		),
		punctuationReplacer: strings.NewReplacer(
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
			"…", "...",
			"–", "-",
			"‒", "-",
		),
	}
}

// Normalize returns the normalized text. URLs are left untouched.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	urls := n.urlPattern.FindAllStringIndex(text, -1)
	if len(urls) == 0 {
		return n.normalizeWhitespace(n.normalizeSegment(text))
	}

	var builder strings.Builder

	last := 0

	for _, span := range urls {
		builder.WriteString(n.normalizeSegment(text[last:span[0]]))
		builder.WriteString(text[span[0]:span[1]])
		last = span[1]
	}

	builder.WriteString(n.normalizeSegment(text[last:]))

	return n.normalizeWhitespace(builder.String())
}

func (n *Normalizer) normalizeSegment(segment string) string {
	segment = n.abbreviationReplacer.Replace(segment)
	segment = n.punctuationReplacer.Replace(segment)

	return n.numberPattern.ReplaceAllStringFunc(segment, func(digits string) string {
		number, err := strconv.Atoi(digits)
		if err != nil {
			return digits
		}

		return IntegerToWords(number)
	})
}

func (n *Normalizer) normalizeWhitespace(text string) string {
	return strings.TrimSpace(n.whitespacePattern.ReplaceAllString(text, " "))
}

// IntegerToWords spells out numbers in [0, MaxNumberForWords]. Other values
// are returned as digits.
func IntegerToWords(number int) string {
	if number < 0 || number > MaxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	thousands := number / NumberBaseThousand
	if thousands > 0 {
		parts = append(parts, underThousand(thousands)+" thousand")
	}

	remainder := number % NumberBaseThousand
	if remainder > 0 {
		parts = append(parts, underThousand(remainder))
	}

	return strings.Join(parts, " ")
}

func underThousand(number int) string {
	hundreds := number / NumberBaseHundred
	remainder := number % NumberBaseHundred

	switch {
	case hundreds == 0:
		return underHundred(remainder)
	case remainder == 0:
		return ones[hundreds] + " hundred"
	default:
		return ones[hundreds] + " hundred " + underHundred(remainder)
	}
}

func underHundred(number int) string {
	switch {
	case number < NumberBaseTen:
		return ones[number]
	case number < NumberBaseTwenty:
		return teens[number-NumberBaseTen]
	case number%NumberBaseTen == 0:
		return tens[number/NumberBaseTen]
	default:
		return tens[number/NumberBaseTen] + " " + ones[number%NumberBaseTen]
	}
}
