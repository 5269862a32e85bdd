// Package page implements the single pagination window shared by the exact
// (store-sliced) and fuzzy (memory-sliced) retrieval paths.
package page

import (
	"math"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit inside an int for every valid limit.
	MaxPage = math.MaxInt / MaxLimit
)

// Window is a 1-based page of Limit items.
type Window struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// New returns a normalized window. Non-positive values fall back to page 1
// and DefaultLimit; limits above MaxLimit and pages above MaxPage are capped.
func New(page, limit int) Window {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Window{Page: page, Limit: limit}
}

// Parse builds a window from raw query parameter strings. Unparseable values
// are treated as absent.
func Parse(page, limit string) Window {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return New(p, l)
}

// Offset is the number of items skipped before the window starts. It
// saturates at math.MaxInt instead of overflowing.
func (w Window) Offset() int {
	if w.Page <= 1 || w.Limit <= 0 {
		return 0
	}
	if w.Page-1 > math.MaxInt/w.Limit {
		return math.MaxInt
	}
	return (w.Page - 1) * w.Limit
}

// Bounds returns the half-open [start, end) range of the window over a list
// of total items, clamped so that start <= end <= total.
func (w Window) Bounds(total int) (start, end int) {
	if total < 0 {
		total = 0
	}
	start = w.Offset()
	if start >= total {
		return total, total
	}
	end = total
	if w.Limit > 0 && w.Limit < total-start {
		end = start + w.Limit
	}
	return start, end
}

// Slice returns the window's portion of items. Out-of-range pages yield an
// empty, non-nil slice.
func Slice[T any](items []T, w Window) []T {
	start, end := w.Bounds(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
