package query

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/core"
)

// Shell helper rewrites into extended JSON. Patterns accept single or double
// quotes and are matched only at the position being scanned.
var shellHelpers = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`^ObjectId\(\s*['"]([0-9a-fA-F]{24})['"]\s*\)`), `{"$$oid":"$1"}`},
	{regexp.MustCompile(`^ISODate\(\s*['"]([^'"]+)['"]\s*\)`), `{"$$date":"$1"}`},
	{regexp.MustCompile(`^(?:new\s+)?Date\(\s*['"]([^'"]+)['"]\s*\)`), `{"$$date":"$1"}`},
	{regexp.MustCompile(`^NumberLong\(\s*['"]?(-?\d+)['"]?\s*\)`), `{"$$numberLong":"$1"}`},
	{regexp.MustCompile(`^NumberInt\(\s*['"]?(-?\d+)['"]?\s*\)`), `$1`},
	{regexp.MustCompile(`^NumberDecimal\(\s*['"]([^'"]+)['"]\s*\)`), `{"$$numberDecimal":"$1"}`},
}

// NormalizeShellSyntax rewrites mongo shell constructors such as
// ObjectId("...") and ISODate("...") into their extended JSON form.
// Text inside JSON string literals is copied unchanged.
func NormalizeShellSyntax(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] == '"' {
			end := stringLiteralEnd(text, i)
			b.WriteString(text[i:end])
			i = end
			continue
		}
		if n := rewriteHelper(&b, text[i:]); n > 0 {
			i += n
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

// rewriteHelper writes the rewrite of a helper call at the start of rest and
// returns the number of bytes it consumed, or 0 if no helper starts there.
func rewriteHelper(b *strings.Builder, rest string) int {
	if c := rest[0]; !(c >= 'A' && c <= 'Z') && c != 'n' {
		return 0
	}
	for _, h := range shellHelpers {
		m := h.pattern.FindStringSubmatchIndex(rest)
		if m == nil {
			continue
		}
		b.Write(h.pattern.ExpandString(nil, h.replacement, rest, m))
		return m[1]
	}
	return 0
}

// stringLiteralEnd returns the index just past the string literal opening at
// start, or len(text) if it is never closed.
func stringLiteralEnd(text string, start int) int {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(text)
}

// ParseDocument parses extended JSON (or shell-style) text into an ordered
// document. Empty text yields an empty document. field names the input in
// the returned QuerySyntaxError.
func ParseDocument(field, text string) (bson.D, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return bson.D{}, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(NormalizeShellSyntax(trimmed)), false, &doc); err != nil {
		return nil, syntaxError(field, err)
	}
	return nonNil(doc), nil
}

// ParsePipeline parses text holding an array of stage documents. Empty text
// and "[]" both yield no stages.
func ParsePipeline(text string) ([]bson.D, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	// The extended JSON reader only accepts a document at top level, so the
	// array is wrapped in one.
	var wrapper struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	wrapped := `{"pipeline": ` + NormalizeShellSyntax(trimmed) + "\n}"
	if err := bson.UnmarshalExtJSON([]byte(wrapped), false, &wrapper); err != nil {
		return nil, syntaxError(FieldAggregation, err)
	}
	return wrapper.Pipeline, nil
}

// syntaxError surfaces the parser message, minus any leading newline.
func syntaxError(field string, err error) *core.QuerySyntaxError {
	msg := strings.TrimLeft(err.Error(), "\r\n")
	return &core.QuerySyntaxError{Field: field, Message: msg}
}
