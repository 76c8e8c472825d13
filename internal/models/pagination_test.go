package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		limit int
		total int
		want  PageMeta
	}{
		{
			name: "middle page", page: 2, limit: 10, total: 25,
			want: PageMeta{Page: 2, Limit: 10, TotalItems: 25, TotalPages: 3, HasNextPage: true, HasPrevPage: true},
		},
		{
			name: "first page", page: 1, limit: 10, total: 25,
			want: PageMeta{Page: 1, Limit: 10, TotalItems: 25, TotalPages: 3, HasNextPage: true, HasPrevPage: false},
		},
		{
			name: "last page", page: 3, limit: 10, total: 25,
			want: PageMeta{Page: 3, Limit: 10, TotalItems: 25, TotalPages: 3, HasNextPage: false, HasPrevPage: true},
		},
		{
			name: "empty result", page: 1, limit: 10, total: 0,
			want: PageMeta{Page: 1, Limit: 10, TotalItems: 0, TotalPages: 0, HasNextPage: false, HasPrevPage: false},
		},
		{
			name: "exact fit", page: 2, limit: 10, total: 20,
			want: PageMeta{Page: 2, Limit: 10, TotalItems: 20, TotalPages: 2, HasNextPage: false, HasPrevPage: true},
		},
		{
			name: "page below one clamps", page: 0, limit: 10, total: 5,
			want: PageMeta{Page: 1, Limit: 10, TotalItems: 5, TotalPages: 1, HasNextPage: false, HasPrevPage: false},
		},
		{
			name: "limit out of bounds defaults", page: 1, limit: 500, total: 50,
			want: PageMeta{Page: 1, Limit: 20, TotalItems: 50, TotalPages: 3, HasNextPage: true, HasPrevPage: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := NewPageMeta(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.want, *meta)
		})
	}
}
