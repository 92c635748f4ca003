// Package pagination tracks page size and page number over a result list
// without holding the data itself.
package pagination

import (
	"fmt"

	"github.com/peternagy/mongobrowse/internal/core"
)

// PageSize is the number of rows per page; PageSizeAll shows everything.
type PageSize int

const (
	PageSizeAll    PageSize = 0
	PageSizeTen    PageSize = 10
	PageSizeTwenty PageSize = 20
	PageSizeFifty  PageSize = 50
)

// PageSizes lists the selectable sizes in display order.
var PageSizes = []PageSize{PageSizeAll, PageSizeTen, PageSizeTwenty, PageSizeFifty}

func (s PageSize) String() string {
	if s == PageSizeAll {
		return "All"
	}
	return fmt.Sprintf("%d", int(s))
}

// ParsePageSize maps "all", "10", "20" or "50" to a PageSize.
func ParsePageSize(text string) (PageSize, error) {
	for _, s := range PageSizes {
		if text == s.String() || (s == PageSizeAll && text == "all") {
			return s, nil
		}
	}
	return PageSizeAll, &core.ConfigurationError{Field: "pageSize", Reason: fmt.Sprintf("unsupported page size %q", text)}
}

// ChangedEvent is the event name used by EmitterListener.
const ChangedEvent = "pagination:changed"

// Event describes the pagination state after a change.
type Event struct {
	PageSize   PageSize
	PageNumber int
	TotalPages int
}

// Listener is notified after every change.
type Listener func(Event)

// Pagination holds the page state. Page numbers are 1-based.
type Pagination struct {
	pageSize   PageSize
	pageNumber int
	totalItems int
	listeners  []Listener
}

// New returns a pagination showing all items on a single page.
func New() *Pagination {
	return &Pagination{pageSize: PageSizeAll, pageNumber: 1}
}

// AddListener registers l for change notifications.
func (p *Pagination) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// EmitterListener forwards changes to a host UI emitter.
func EmitterListener(emitter core.EventEmitter) Listener {
	return func(e Event) {
		emitter.Emit(ChangedEvent, e)
	}
}

func (p *Pagination) notify() {
	e := Event{PageSize: p.pageSize, PageNumber: p.pageNumber, TotalPages: p.TotalPageNumber()}
	for _, l := range p.listeners {
		l(e)
	}
}

func (p *Pagination) PageSize() PageSize { return p.pageSize }
func (p *Pagination) PageNumber() int    { return p.pageNumber }
func (p *Pagination) TotalItemCount() int {
	return p.totalItems
}

// SetPageSize changes the page size and goes back to the first page.
func (p *Pagination) SetPageSize(size PageSize) {
	p.pageSize = size
	p.pageNumber = 1
	p.notify()
}

// SetPageNumber moves to page n; values below 1 select the first page.
func (p *Pagination) SetPageNumber(n int) {
	if n < 1 {
		n = 1
	}
	p.pageNumber = n
	p.notify()
}

// SetTotalItemCount records the size of the underlying result.
func (p *Pagination) SetTotalItemCount(n int) {
	if n < 0 {
		n = 0
	}
	p.totalItems = n
	p.notify()
}

// StartIndex is the index of the first item on the current page, bounded by
// the total item count so that StartIndex() <= EndIndex() on any page.
func (p *Pagination) StartIndex() int {
	if p.pageSize == PageSizeAll {
		return 0
	}
	return min(int(p.pageSize)*(p.pageNumber-1), p.totalItems)
}

// EndIndex is one past the last item on the current page, bounded by the
// total item count.
func (p *Pagination) EndIndex() int {
	if p.pageSize == PageSizeAll {
		return p.totalItems
	}
	return min(p.StartIndex()+int(p.pageSize), p.totalItems)
}

// TotalPageNumber returns the number of pages; never less than 1.
func (p *Pagination) TotalPageNumber() int {
	if p.pageSize == PageSizeAll || p.totalItems == 0 {
		return 1
	}
	size := int(p.pageSize)
	return (p.totalItems + size - 1) / size
}

// HasNext reports whether a page follows the current one.
func (p *Pagination) HasNext() bool {
	return p.pageNumber < p.TotalPageNumber()
}

// HasPrevious reports whether a page precedes the current one.
func (p *Pagination) HasPrevious() bool {
	return p.pageNumber > 1
}

// Next moves to the next page if there is one.
func (p *Pagination) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.SetPageNumber(p.pageNumber + 1)
	return true
}

// Previous moves to the previous page if there is one.
func (p *Pagination) Previous() bool {
	if !p.HasPrevious() {
		return false
	}
	p.SetPageNumber(p.pageNumber - 1)
	return true
}

// Slice returns the items visible on the current page.
func Slice[T any](p *Pagination, items []T) []T {
	start := min(p.StartIndex(), len(items))
	end := len(items)
	if p.pageSize != PageSizeAll {
		end = min(start+int(p.pageSize), len(items))
	}
	return items[start:end]
}
