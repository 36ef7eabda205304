package services

import (
	"math"
	"testing"

	"github.com/taskhive/backend/pkg/response"
)

func TestPagination_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      Pagination
		wantErr bool
		offset  int
	}{
		{"defaults", Pagination{}, false, 0},
		{"third page", Pagination{Page: 3, Limit: 20}, false, 40},
		{"last allowed page", Pagination{Page: maxPage, Limit: maxPageLimit}, false, (maxPage - 1) * maxPageLimit},
		{"negative page", Pagination{Page: -1}, true, 0},
		{"limit too large", Pagination{Limit: 101}, true, 0},
		{"page would overflow offset", Pagination{Page: math.MaxInt, Limit: 50}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			err := p.normalize(20)
			if tt.wantErr {
				if response.KindOf(err) != response.KindValidationFailed {
					t.Errorf("expected ValidationFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.offset() != tt.offset {
				t.Errorf("expected offset %d, got %d", tt.offset, p.offset())
			}
		})
	}
}
