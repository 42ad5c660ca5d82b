package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Author is a paper author. Name is unique.
type Author struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Category is a subject area. Name is unique.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// Tag is a free-form label. Name is unique.
type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// NormalizeNames trims each name, drops empty ones and removes exact duplicates,
// keeping the first occurrence.
func NormalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = trimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SplitNames flattens repeated query values and comma lists into normalized names.
// "a,b" and ["a", "b"] both yield [a b].
func SplitNames(values []string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return NormalizeNames(parts)
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
