package utils

import "testing"

func TestNewPaginationParams(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		size      int
		order     string
		wantPage  int
		wantSize  int
		wantOrder string
	}{
		{"defaults kept", 2, 20, "asc", 2, 20, SortAscending},
		{"page below one", 0, 20, "asc", 1, 20, SortAscending},
		{"size too small", 1, 0, "desc", 1, MinPageSize, SortDescending},
		{"size too large", 1, 1000, "desc", 1, MaxPageSize, SortDescending},
		{"unknown order", 1, 20, "sideways", 1, 20, SortDescending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaginationParams(tt.page, tt.size, "", tt.order)
			if p.Page != tt.wantPage || p.PageSize != tt.wantSize || p.Order != tt.wantOrder {
				t.Errorf("got page=%d size=%d order=%s", p.Page, p.PageSize, p.Order)
			}
		})
	}
}

func TestPaginationParams_SortField(t *testing.T) {
	allowed := []string{"timestamp", "event_type"}

	if got := NewPaginationParams(1, 10, "event_type", "").SortField("timestamp", allowed...); got != "event_type" {
		t.Errorf("allowed field = %q", got)
	}
	if got := NewPaginationParams(1, 10, "password", "").SortField("timestamp", allowed...); got != "timestamp" {
		t.Errorf("unknown field = %q, want fallback", got)
	}
}

func TestCreatePaginationMeta(t *testing.T) {
	meta := CreatePaginationMeta(NewPaginationParams(2, 2, "", ""), 5)
	if meta.TotalPages != 3 || !meta.HasNext || !meta.HasPrevious {
		t.Fatalf("meta = %+v", meta)
	}
	if *meta.NextPage != 3 || *meta.PreviousPage != 1 {
		t.Errorf("next=%d previous=%d", *meta.NextPage, *meta.PreviousPage)
	}
}
