package pagination

import (
	"testing"

	"github.com/peternagy/mongobrowse/internal/core"
)

func TestDefaultPagination(t *testing.T) {
	p := New()
	if p.PageSize() != PageSizeAll {
		t.Errorf("default page size = %v, want All", p.PageSize())
	}
	if p.PageNumber() != 1 {
		t.Errorf("default page number = %d, want 1", p.PageNumber())
	}
	p.SetTotalItemCount(300)
	if got := p.TotalPageNumber(); got != 1 {
		t.Errorf("TotalPageNumber() with All = %d, want 1", got)
	}
	if p.StartIndex() != 0 || p.EndIndex() != 300 {
		t.Errorf("bounds = [%d,%d), want [0,300)", p.StartIndex(), p.EndIndex())
	}
}

func TestTotalPageNumber(t *testing.T) {
	tests := []struct {
		name  string
		size  PageSize
		total int
		want  int
	}{
		{"ten of 300", PageSizeTen, 300, 30},
		{"ten of 301", PageSizeTen, 301, 31},
		{"twenty of 19", PageSizeTwenty, 19, 1},
		{"fifty of 0", PageSizeFifty, 0, 1},
		{"all of 1000", PageSizeAll, 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			p.SetPageSize(tt.size)
			p.SetTotalItemCount(tt.total)
			if got := p.TotalPageNumber(); got != tt.want {
				t.Errorf("TotalPageNumber() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetPageSizeResetsPageNumber(t *testing.T) {
	p := New()
	p.SetPageSize(PageSizeTen)
	p.SetTotalItemCount(300)
	p.SetPageNumber(7)
	if p.PageNumber() != 7 {
		t.Fatalf("PageNumber() = %d, want 7", p.PageNumber())
	}
	p.SetPageSize(PageSizeTwenty)
	if p.PageNumber() != 1 {
		t.Errorf("PageNumber() after SetPageSize = %d, want 1", p.PageNumber())
	}
}

func TestIndices(t *testing.T) {
	p := New()
	p.SetPageSize(PageSizeTen)
	p.SetTotalItemCount(25)

	p.SetPageNumber(3)
	if p.StartIndex() != 20 || p.EndIndex() != 25 {
		t.Errorf("page 3 bounds = [%d,%d), want [20,25)", p.StartIndex(), p.EndIndex())
	}

	p.SetTotalItemCount(5)
	p.SetPageNumber(3)
	if p.StartIndex() != 5 || p.EndIndex() != 5 {
		t.Errorf("page past the end bounds = [%d,%d), want [5,5)", p.StartIndex(), p.EndIndex())
	}
	items := make([]int, 5)
	if got := items[p.StartIndex():p.EndIndex()]; len(got) != 0 {
		t.Errorf("page past the end holds %d items, want 0", len(got))
	}

	p.SetPageNumber(0)
	if p.PageNumber() != 1 {
		t.Errorf("page number below 1 should clamp to 1, got %d", p.PageNumber())
	}
}

func TestNextPrevious(t *testing.T) {
	p := New()
	p.SetPageSize(PageSizeTen)
	p.SetTotalItemCount(15)

	if p.Previous() {
		t.Error("Previous() on first page should be false")
	}
	if !p.Next() || p.PageNumber() != 2 {
		t.Errorf("Next() should move to page 2, at %d", p.PageNumber())
	}
	if p.Next() {
		t.Error("Next() on last page should be false")
	}
	if !p.Previous() || p.PageNumber() != 1 {
		t.Errorf("Previous() should move back to page 1, at %d", p.PageNumber())
	}
}

func TestSlice(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}
	p := New()
	if got := Slice(p, items); len(got) != 25 {
		t.Errorf("All page has %d items, want 25", len(got))
	}

	p.SetPageSize(PageSizeTen)
	p.SetTotalItemCount(len(items))
	p.SetPageNumber(3)
	got := Slice(p, items)
	if len(got) != 5 || got[0] != 20 {
		t.Errorf("page 3 = %v", got)
	}

	p.SetPageNumber(9)
	if got := Slice(p, items); len(got) != 0 {
		t.Errorf("page past the end = %v, want empty", got)
	}
}

func TestListeners(t *testing.T) {
	p := New()
	var events []Event
	p.AddListener(func(e Event) { events = append(events, e) })

	p.SetTotalItemCount(300)
	p.SetPageSize(PageSizeTen)
	p.SetPageNumber(4)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	last := events[2]
	if last.PageNumber != 4 || last.PageSize != PageSizeTen || last.TotalPages != 30 {
		t.Errorf("last event = %+v", last)
	}
}

func TestEmitterListener(t *testing.T) {
	rec := &core.RecordingEmitter{}
	p := New()
	p.AddListener(EmitterListener(rec))
	p.SetPageSize(PageSizeFifty)

	if names := rec.Names(); len(names) != 1 || names[0] != ChangedEvent {
		t.Errorf("emitted %v", names)
	}
}

func TestParsePageSize(t *testing.T) {
	for text, want := range map[string]PageSize{"all": PageSizeAll, "All": PageSizeAll, "10": PageSizeTen, "20": PageSizeTwenty, "50": PageSizeFifty} {
		got, err := ParsePageSize(text)
		if err != nil || got != want {
			t.Errorf("ParsePageSize(%q) = %v, %v", text, got, err)
		}
	}
	if _, err := ParsePageSize("15"); err == nil {
		t.Error("ParsePageSize(15) should fail")
	}
}
