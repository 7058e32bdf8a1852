package process

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// floatLiteral renders f so that every target language reads it as a
// floating-point literal.
func floatLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func intLiteral(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<63
}

// quoteString renders a double-quoted literal. Control characters go through
// unicode, which produces the language's escape for a code point.
func quoteString(s string, unicode func(rune) string, extra map[rune]string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if replacement, ok := extra[r]; ok {
			b.WriteString(replacement)
			continue
		}
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f || r == utf8.RuneError {
				b.WriteString(unicode(r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func bracedUnicode(r rune) string {
	return fmt.Sprintf(`\u{%x}`, r)
}

func fixedUnicode(r rune) string {
	return fmt.Sprintf(`\u%04x`, r)
}

func singleRune(s string) bool {
	return utf8.RuneCountInString(s) == 1
}

// typeContains reports whether any of the words appears in typ as a whole
// identifier.
func typeContains(typ string, words ...string) bool {
	fields := strings.FieldsFunc(typ, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	for _, field := range fields {
		for _, word := range words {
			if field == word {
				return true
			}
		}
	}
	return false
}
