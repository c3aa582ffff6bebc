package models

// Page is a materialized slice of results plus paging state.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPage trims a result fetched with limit+1 rows and records whether more exist.
func NewPage[T any](items []T, limit, offset int) Page[T] {
	more := false
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		more = true
	}
	return Page[T]{Items: items, Limit: limit, Offset: offset, HasMore: more}
}

// Number returns the 1-based page number.
func (p Page[T]) Number() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}
