package model

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// placeholderIdentifier replaces labels that sanitize to nothing
	placeholderIdentifier = "unnamed"
	// digitPrefix is prepended when an identifier would start with a digit
	digitPrefix = "t_"
	// keywordSuffix is appended to identifiers that equal a reserved keyword
	keywordSuffix = "_col"
	// firstTableSuffix is the first numeric suffix used for repeated sheet names
	firstTableSuffix = 2
)

var (
	invalidIdentifierRun = regexp.MustCompile(`[^a-z0-9_]+`)
	repeatedUnderscores  = regexp.MustCompile(`_+`)
)

// reservedKeywords are SQL keywords that cannot be used bare as identifiers.
var reservedKeywords = map[string]struct{}{
	"table": {}, "select": {}, "from": {}, "where": {}, "group": {}, "order": {},
	"by": {}, "join": {}, "index": {}, "key": {}, "limit": {}, "values": {},
	"primary": {}, "default": {}, "check": {}, "references": {}, "union": {},
	"case": {}, "when": {}, "then": {}, "else": {}, "end": {}, "and": {},
	"or": {}, "not": {}, "null": {}, "as": {}, "on": {}, "in": {}, "is": {},
	"create": {}, "drop": {}, "insert": {}, "update": {}, "delete": {},
	"having": {}, "distinct": {}, "all": {},
}

// IsReservedKeyword reports whether id is a reserved SQL keyword.
func IsReservedKeyword(id string) bool {
	_, ok := reservedKeywords[id]
	return ok
}

// Sanitize converts a free-form sheet or column label into a lowercase,
// underscore-delimited identifier matching [a-z][a-z0-9_]*.
func Sanitize(label string) string {
	name := cases.Lower(language.Und).String(strings.TrimSpace(label))
	name = invalidIdentifierRun.ReplaceAllString(name, "_")
	name = repeatedUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		name = placeholderIdentifier
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = digitPrefix + name
	}
	if IsReservedKeyword(name) {
		name += keywordSuffix
	}
	return name
}

// SanitizeAll sanitizes every label and makes the result unique.
func SanitizeAll(labels []string) []string {
	ids := make([]string, len(labels))
	for i, label := range labels {
		ids[i] = Sanitize(label)
	}
	return EnsureUnique(ids)
}

// EnsureUnique suffixes repeated identifiers with _1, _2, ... in order of
// appearance. The first occurrence keeps its unsuffixed form.
func EnsureUnique(ids []string) []string {
	counts := make(map[string]int, len(ids))
	taken := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			out = append(out, id)
			continue
		}
		candidate := id
		for {
			counts[id]++
			candidate = id + "_" + strconv.Itoa(counts[id])
			if _, dup := taken[candidate]; !dup {
				break
			}
		}
		taken[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// UniqueTableName returns base, or base_2, base_3, ... when base is already
// in used. The returned name is added to used.
func UniqueTableName(base string, used map[string]struct{}) string {
	name := base
	for suffix := firstTableSuffix; ; suffix++ {
		if _, dup := used[name]; !dup {
			break
		}
		name = base + "_" + strconv.Itoa(suffix)
	}
	used[name] = struct{}{}
	return name
}
