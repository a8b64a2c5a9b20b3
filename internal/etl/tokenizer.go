package etl

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const bom = "\uFEFF"

// DetectDelimiter picks tab when the header line holds strictly more tabs
// than commas, otherwise comma.
func DetectDelimiter(header string) rune {
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return '\t'
	}
	return ','
}

// StripBOM removes a leading byte-order mark.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, bom)
}

// SplitLine splits one line into trimmed fields.
//
// A quote toggles quoted state; inside quotes the delimiter is literal and
// "" is an escaped quote. An unterminated quote closes at end of line.
func SplitLine(line string, delim rune) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(field.String()))
}

// QuoteField renders value so SplitLine returns it unchanged. Values that
// need no quoting are returned as-is.
func QuoteField(value string, delim rune) string {
	if !needsQuoting(value, delim) {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func needsQuoting(value string, delim rune) bool {
	if value == "" {
		return false
	}
	return strings.ContainsRune(value, delim) || strings.ContainsAny(value, "\"\r\n")
}

// Table is tokenized CSV text: the header row plus data rows with their
// 1-based source line numbers.
type Table struct {
	Delimiter rune
	Header    []string
	Rows      [][]string
	Lines     []int
}

// Tokenize splits text into lines (LF or CRLF), strips the BOM from the
// header, detects the delimiter and splits every non-blank line.
func Tokenize(text string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerAt := -1
	for i, l := range lines {
		if strings.TrimSpace(StripBOM(l)) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyInput
	}

	headerLine := StripBOM(lines[headerAt])
	t := &Table{Delimiter: DetectDelimiter(headerLine)}
	t.Header = SplitLine(headerLine, t.Delimiter)

	for i := headerAt + 1; i < len(lines); i++ {
		l := strings.TrimSuffix(lines[i], "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		t.Rows = append(t.Rows, SplitLine(l, t.Delimiter))
		t.Lines = append(t.Lines, i+1)
	}
	return t, nil
}

// ErrInputTooLarge is returned by ReadInput when the body exceeds the limit.
var ErrInputTooLarge = errors.New("input exceeds maximum size")

// ReadInput reads at most maxBytes from r (no limit when maxBytes <= 0),
// drops a leading BOM and replaces invalid UTF-8 with '?'.
func ReadInput(r io.Reader, maxBytes int64) (string, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrInputTooLarge, maxBytes)
	}
	return strings.ToValidUTF8(StripBOM(string(data)), "?"), nil
}
