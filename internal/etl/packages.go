package etl

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/charterops/internal/booking"
)

// SplitDescription separates a product description into the yacht label and
// the package descriptor.
//
// The first hyphen, en dash, or em dash splits the text, with or without
// surrounding whitespace. Without a dash, text before "(" is the label and the
// parenthetical is the descriptor. Otherwise the whole string is the label.
func SplitDescription(raw string) (label, descriptor string) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "-\u2013\u2014"); i >= 0 {
		_, size := utf8.DecodeRuneInString(raw[i:])
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+size:])
	}

	if open := strings.IndexRune(raw, '('); open >= 0 {
		inner := raw[open+1:]
		if end := strings.IndexRune(inner, ')'); end >= 0 {
			inner = inner[:end]
		}
		return strings.TrimSpace(raw[:open]), strings.TrimSpace(inner)
	}
	return raw, ""
}

// Detection is what the detector could infer from one description.
type Detection struct {
	// YachtLabel is the raw text left of the separator.
	YachtLabel string
	// Yacht is the keyword-mapped yacht, or YachtLabel when nothing matched.
	Yacht      string
	Descriptor string
	Package    string
	Type       string
	Addons     []string

	// PackageMatched is false when Package is a fallback.
	PackageMatched bool
	// Reason explains a fallback package.
	Reason string
}

type rule struct {
	tokens []string
	value  string
}

// PackageDetector infers yacht, package, cruise type and addons from free
// text using keyword tables fixed at construction.
type PackageDetector struct {
	yachts   []rule
	packages []rule
	types    []rule
	addons   []rule
}

// NewPackageDetector compiles kw. The detector keeps its own copy.
func NewPackageDetector(kw *Keywords) *PackageDetector {
	if kw == nil {
		kw = &Keywords{}
	}
	return &PackageDetector{
		yachts:   compileRules(kw.Yachts),
		packages: compileRules(kw.Packages),
		types:    compileRules(kw.Types),
		addons:   compileRules(kw.Addons),
	}
}

func compileRules(in []KeywordRule) []rule {
	out := make([]rule, 0, len(in))
	for _, r := range in {
		tokens := tokenize(r.Keyword)
		if len(tokens) == 0 {
			continue
		}
		out = append(out, rule{tokens: tokens, value: strings.TrimSpace(r.Value)})
	}
	return out
}

// tokenize upper-cases s and splits it on anything that is not a letter or
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenMatches reports whether a text token equals a keyword token, allowing
// one trailing plural S ("KID" matches "KIDS" but not "KIDDO").
func tokenMatches(text, kw string) bool {
	return text == kw || (len(text) == len(kw)+1 && strings.HasPrefix(text, kw) && text[len(kw)] == 'S')
}

// span returns the first position where the rule's tokens occur
// consecutively in text.
func (r rule) span(text []string) (start int, ok bool) {
	for start = 0; start+len(r.tokens) <= len(text); start++ {
		ok = true
		for j, tok := range r.tokens {
			if !tokenMatches(text[start+j], tok) {
				ok = false
				break
			}
		}
		if ok {
			return start, true
		}
	}
	return 0, false
}

func (r rule) matches(text []string) bool {
	_, ok := r.span(text)
	return ok
}

func firstMatch(rules []rule, text []string) (string, bool) {
	for _, r := range rules {
		if r.matches(text) {
			return r.value, true
		}
	}
	return "", false
}

// firstMatchRest is firstMatch that also returns text with the matched
// tokens removed.
func firstMatchRest(rules []rule, text []string) (string, []string, bool) {
	for _, r := range rules {
		if start, ok := r.span(text); ok {
			rest := append(append([]string{}, text[:start]...), text[start+len(r.tokens):]...)
			return r.value, rest, true
		}
	}
	return "", text, false
}

// Detect analyses raw for the given source.
//
// MASTER rows carry a structured package column, so only the yacht split is
// done. Other sources run full inference; when no package keyword matches,
// webhook rows fall back to ADULT and DEFAULT rows keep the descriptor as a
// yacht-specific custom package.
func (d *PackageDetector) Detect(source Source, raw string) Detection {
	label, descriptor := SplitDescription(raw)
	det := Detection{YachtLabel: label, Yacht: label, Descriptor: descriptor}

	// Package keywords skip the tokens of the matched yacht name.
	rest := tokenize(label)
	if y, r, ok := firstMatchRest(d.yachts, rest); ok {
		det.Yacht, rest = y, r
	}

	if source == SourceMaster {
		return det
	}

	if t, ok := firstMatch(d.types, tokenize(raw)); ok {
		det.Type = t
	}
	det.Addons = d.DetectAddons(raw)

	if p, ok := firstMatch(d.packages, tokenize(descriptor)); ok {
		det.Package, det.PackageMatched = p, true
		return det
	}
	if p, ok := firstMatch(d.packages, rest); ok {
		det.Package, det.PackageMatched = p, true
		return det
	}

	if source == SourceDefault && descriptor != "" {
		det.Package = strings.ToUpper(descriptor)
		det.Reason = ReasonUnknownPackage
		return det
	}
	det.Package = booking.PackageAdult
	det.Reason = ReasonFallbackPackage
	return det
}

// DetectPackage maps a structured package cell onto the vocabulary. Cells
// that match no keyword are kept upper-cased as custom packages.
func (d *PackageDetector) DetectPackage(cell string) (string, bool) {
	name := strings.ToUpper(strings.Join(strings.Fields(cell), " "))
	if booking.IsVocabularyPackage(name) {
		return name, true
	}
	if p, ok := firstMatch(d.packages, tokenize(cell)); ok {
		return p, true
	}
	return name, false
}

// DetectAddons returns the distinct addons named anywhere in text, in rule
// order.
func (d *PackageDetector) DetectAddons(text string) []string {
	tokens := tokenize(text)
	var out []string
	seen := make(map[string]bool)
	for _, r := range d.addons {
		if !seen[r.value] && r.matches(tokens) {
			seen[r.value] = true
			out = append(out, r.value)
		}
	}
	return out
}
