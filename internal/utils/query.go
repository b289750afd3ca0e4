// Package utils holds small helpers for parsing query parameters.
package utils

import (
	"cmp"
	"strconv"
	"strings"
)

// AtoiDefault parses s as a decimal int, returning def when s is blank or
// not a number. Surrounding spaces are ignored.
//
//	utils.AtoiDefault("7", 30)   // 7
//	utils.AtoiDefault("", 30)    // 30
//	utils.AtoiDefault("all", 30) // 30
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// QueryInt is AtoiDefault followed by Clamp, the usual shape of a "days" or
// "limit" parameter.
func QueryInt(s string, def, lo, hi int) int {
	return Clamp(AtoiDefault(s, def), lo, hi)
}
