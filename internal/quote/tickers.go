// Package quote owns the ticker universe and the periodic random-walk
// producer that feeds the Hub.
package quote

import (
	"bufio"
	"os"
	"sort"
	"strings"
)

// DefaultTickers is the embedded fallback universe used when neither
// --tickers-file nor --tickers is given.
var DefaultTickers = []string{"AAPL", "GOOG", "MSFT", "AMZN", "TSLA"}

// LoadFile reads a ticker file: UTF-8 text, one symbol per line, trimmed,
// empty lines ignored, '#' starts a line comment (full-line or inline).
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw = append(raw, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ParseLines(raw), nil
}

// ParseLines normalizes a slice of raw ticker-file lines: drop comments and
// blanks, uppercase, sort, de-duplicate.
func ParseLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		t := strings.ToUpper(strings.TrimSpace(line))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseText auto-detects CSV-on-one-line vs. multiline-with-comments form
// by the presence of '\n' or '#', then normalizes.
func ParseText(text string) []string {
	if strings.ContainsAny(text, "\n#") {
		return ParseLines(strings.Split(text, "\n"))
	}
	return ParseLines(strings.Split(text, ","))
}
