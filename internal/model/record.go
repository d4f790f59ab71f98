package model

import (
	"strings"
	"unicode"
)

// Record is a typed-field map keyed by property name. Resolvers coerce
// backend values at the boundary; consumers treat records as read-only.
type Record = map[string]any

// CloneRecord returns a shallow copy of r. Filters operate on copies so the
// resolver cache never observes stripped fields.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NormalizeID canonicalises an identifier read from heterogeneous sources:
// surrounding quotes and whitespace are stripped, and a float-shaped
// trailing ".0" is removed so "123.0" and "123" compare equal.
func NormalizeID(id string) string {
	s := strings.TrimSpace(id)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if dot := strings.LastIndexByte(s, '.'); dot > 0 {
		frac := s[dot+1:]
		if frac != "" && strings.Trim(frac, "0") == "" && isDigits(s[:dot]) {
			s = s[:dot]
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SnakeCase converts a CamelCase or mixed name to snake_case.
func SnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && runes[i-1] != '_')) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lowerCamel converts a name to lowerCamelCase, collapsing underscores.
func lowerCamel(name string) string {
	parts := strings.Split(SnakeCase(name), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// DefaultTableName returns the warehouse table an object type maps to when
// no explicit table is registered: snake_case of the name, pluralised.
func DefaultTableName(objectType string) string {
	return SnakeCase(objectType) + "s"
}

// DefaultPKColumn returns the primary-key column convention for an object
// type: lowerCamelCase of the name with an Id suffix.
func DefaultPKColumn(objectType string) string {
	return lowerCamel(objectType) + "Id"
}
