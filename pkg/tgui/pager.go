package tgui

import "fmt"

// Page is one window over a slice. Index is 0-based.
type Page[T any] struct {
	Items   []T
	Index   int
	Pages   int
	Total   int
	HasPrev bool
	HasNext bool
}

// Paginate clamps page into range; size <= 0 means 10.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := max((total+size-1)/size, 1)
	page = min(max(page, 0), pages-1)
	start := page * size
	end := min(start+size, total)
	return Page[T]{
		Items:   items[start:end],
		Index:   page,
		Pages:   pages,
		Total:   total,
		HasPrev: page > 0,
		HasNext: end < total,
	}
}

// Label renders "Page 2/5".
func (p Page[T]) Label() string {
	return fmt.Sprintf("Page %d/%d", p.Index+1, p.Pages)
}
