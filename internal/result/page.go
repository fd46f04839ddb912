// Package result holds query results.
package result

// Page is one page of query results. NextCursor is empty when HasNextPage is
// false; that is a convention of the producer, not enforced here.
type Page[T any] struct {
	Data        []T    `json:"data"`
	HasNextPage bool   `json:"hasNextPage"`
	NextCursor  string `json:"nextCursor,omitempty"`
}

// FirstOrDefault returns the first element, or the zero value of T when the
// page is empty.
func (p Page[T]) FirstOrDefault() T {
	if len(p.Data) == 0 {
		var zero T
		return zero
	}
	return p.Data[0]
}

// First returns the first element and whether there was one.
func (p Page[T]) First() (T, bool) {
	if len(p.Data) == 0 {
		var zero T
		return zero, false
	}
	return p.Data[0], true
}

// Len returns the number of elements on the page.
func (p Page[T]) Len() int {
	return len(p.Data)
}
