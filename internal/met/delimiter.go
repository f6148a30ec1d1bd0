package met

import (
	"strings"
)

// Delimiters lists the candidate field delimiters in retry order.
var Delimiters = []rune{',', '\t', ';'}

// preferredDelimiters breaks ties between equally consistent candidates.
var preferredDelimiters = []rune{',', '\t', ';'}

const (
	sniffMaxLines      = 200
	sniffMinConsistent = 0.9
)

// SniffDelimiter guesses the field delimiter of a text sample. A candidate
// qualifies when one non-zero per-line count dominates the sample; the most
// consistent candidate wins. When none qualifies it returns the presence
// fallback (tab, then comma, else semicolon) with a *DelimiterError.
func SniffDelimiter(sample string) (rune, error) {
	lines := sampleLines(sample)

	best, bestScore := rune(0), 0.0
	for _, d := range preferredDelimiters {
		score := consistency(lines, d)
		if score >= sniffMinConsistent && score > bestScore {
			best, bestScore = d, score
		}
	}
	if best != 0 {
		return best, nil
	}

	fb := fallbackDelimiter(sample)
	return fb, &DelimiterError{Fallback: fb}
}

func fallbackDelimiter(sample string) rune {
	switch {
	case strings.ContainsRune(sample, '\t'):
		return '\t'
	case strings.ContainsRune(sample, ','):
		return ','
	}
	return ';'
}

func sampleLines(sample string) []string {
	var lines []string
	for _, l := range strings.Split(sample, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == sniffMaxLines {
			break
		}
	}
	return lines
}

// consistency scores how uniformly d splits lines: the share of lines with
// the modal count minus the share with any other count. A zero mode scores 0.
func consistency(lines []string, d rune) float64 {
	if len(lines) == 0 {
		return 0
	}
	freq := make(map[int]int)
	for _, l := range lines {
		freq[strings.Count(l, string(d))]++
	}
	mode, modeLines := 0, 0
	for count, n := range freq {
		if n > modeLines || (n == modeLines && count > mode) {
			mode, modeLines = count, n
		}
	}
	if mode == 0 {
		return 0
	}
	others := len(lines) - modeLines
	return float64(modeLines-others) / float64(len(lines))
}
