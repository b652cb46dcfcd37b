package pagination

const (
	// DefaultPerPage is the page size when none is requested.
	DefaultPerPage = 15
	// MaxPerPage caps how many rows any list query can request.
	MaxPerPage = 100
)

// Params holds page-number pagination inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Normalize clamps page to >= 1 and per-page into [1, MaxPerPage].
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset is the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Limit is the normalized page size.
func (p Params) Limit() int {
	return p.Normalize().PerPage
}

// Result is one page of items plus the total match count.
type Result[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

// NewResult builds a Result for the normalized params.
func NewResult[T any](items []T, p Params, total int64) Result[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Page: n.Page, PerPage: n.PerPage, Total: total}
}
