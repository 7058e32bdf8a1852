package process

import (
	"regexp"
	"strings"
)

// signature is a top-level function declaration found by scanning source text.
type signature struct {
	name   string
	params []param
}

type param struct {
	// label is the Swift argument label; empty when the call site has none.
	label string
	name  string
	typ   string
}

// scanSignatures finds declarations matched by pattern, whose first group is the
// function name and whose match ends just past the opening parenthesis. Only
// declarations starting in column zero are considered top-level.
func scanSignatures(source string, pattern *regexp.Regexp, parse func(string) param) []signature {
	var sigs []signature
	seen := make(map[string]struct{})
	for _, loc := range pattern.FindAllStringSubmatchIndex(source, -1) {
		name := source[loc[2]:loc[3]]
		if _, ok := seen[name]; ok {
			continue
		}
		body, ok := enclosed(source[loc[1]:])
		if !ok {
			continue
		}
		seen[name] = struct{}{}

		sig := signature{name: name}
		for _, raw := range splitTopLevel(body, ',') {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			sig.params = append(sig.params, parse(raw))
		}
		sigs = append(sigs, sig)
	}
	return sigs
}

// enclosed returns the text up to the parenthesis that closes an already
// opened one.
func enclosed(text string) (string, bool) {
	depth := 1
	var quote rune
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth == 0 {
				return text[:i], true
			}
		}
	}
	return "", false
}

// splitTopLevel splits on sep outside brackets, braces, parentheses, angle
// brackets and string literals. A '>' preceded by '-' is an arrow, not a
// closing bracket.
func splitTopLevel(text string, sep rune) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
		prev  rune
	)
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote && prev != '\\' {
				quote = 0
			}
		case r == '"':
			quote = r
		case r == '(' || r == '[' || r == '{' || r == '<':
			depth++
		case r == ')' || r == ']' || r == '}' || (r == '>' && prev != '-'):
			depth--
		case r == sep && depth == 0:
			parts = append(parts, text[start:i])
			start = i + len(string(r))
		}
		prev = r
	}
	return append(parts, text[start:])
}

// cutTopLevel splits text at the first top-level occurrence of sep.
func cutTopLevel(text string, sep rune) (string, string, bool) {
	parts := splitTopLevel(text, sep)
	if len(parts) < 2 {
		return text, "", false
	}
	return parts[0], text[len(parts[0])+len(string(sep)):], true
}

// genericArgs returns the type arguments when typ is one of the named generic
// types, e.g. genericArgs("Vec<i32>", "Vec") yields ["i32"].
func genericArgs(typ string, names ...string) ([]string, bool) {
	typ = strings.TrimSpace(typ)
	for _, name := range names {
		for _, candidate := range []string{name, qualifiedSuffix(typ, name)} {
			if candidate == "" || !strings.HasPrefix(typ, candidate+"<") || !strings.HasSuffix(typ, ">") {
				continue
			}
			inner := typ[len(candidate)+1 : len(typ)-1]
			args := splitTopLevel(inner, ',')
			for i := range args {
				args[i] = strings.TrimSpace(args[i])
			}
			return args, true
		}
	}
	return nil, false
}

// qualifiedSuffix matches path-qualified names such as std::collections::HashMap.
func qualifiedSuffix(typ, name string) string {
	idx := strings.Index(typ, "::"+name+"<")
	if idx < 0 {
		return ""
	}
	return typ[:idx+2+len(name)]
}

func renameEntry(source string, pattern *regexp.Regexp, replacement string) string {
	return pattern.ReplaceAllString(source, replacement)
}
