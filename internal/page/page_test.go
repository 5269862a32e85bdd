package page_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"jobmate/jobs-service/internal/page"
)

func TestNew_Defaults(t *testing.T) {
	cases := []struct {
		name        string
		page, limit int
		want        page.Window
	}{
		{"zero values", 0, 0, page.Window{Page: 1, Limit: page.DefaultLimit}},
		{"negative values", -3, -1, page.Window{Page: 1, Limit: page.DefaultLimit}},
		{"capped limit", 2, 5000, page.Window{Page: 2, Limit: page.MaxLimit}},
		{"kept", 4, 25, page.Window{Page: 4, Limit: 25}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, page.New(c.page, c.limit))
		})
	}
}

func TestParse_Garbage(t *testing.T) {
	assert.Equal(t, page.Window{Page: 1, Limit: 10}, page.Parse("abc", ""))
	assert.Equal(t, page.Window{Page: 3, Limit: 7}, page.Parse("3", "7"))
}

func TestBounds_Clamped(t *testing.T) {
	w := page.New(3, 10)
	start, end := w.Bounds(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = w.Bounds(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}

func TestSlice_OutOfRangeIsEmpty(t *testing.T) {
	items := []int{1, 2, 3}
	got := page.Slice(items, page.New(9, 2))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSlice_Window(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, []string{"a", "b"}, page.Slice(items, page.New(1, 2)))
	assert.Equal(t, []string{"c", "d"}, page.Slice(items, page.New(2, 2)))
	assert.Equal(t, []string{"e"}, page.Slice(items, page.New(3, 2)))
}

func TestSlice_DoesNotAlias(t *testing.T) {
	items := []int{1, 2, 3}
	got := page.Slice(items, page.New(1, 2))
	got[0] = 99
	assert.Equal(t, 1, items[0])
}

func TestHugePage_NeverOverflows(t *testing.T) {
	w := page.Parse("922337203685477582", "10")
	assert.Equal(t, page.MaxPage, w.Page)
	assert.Positive(t, w.Offset())

	items := []int{1, 2, 3}
	got := page.Slice(items, w)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	start, end := w.Bounds(len(items))
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}

func TestOffset_SaturatesOnRawWindow(t *testing.T) {
	w := page.Window{Page: math.MaxInt, Limit: page.MaxLimit}
	assert.Equal(t, math.MaxInt, w.Offset())
	assert.Empty(t, page.Slice([]int{1, 2}, w))
}
