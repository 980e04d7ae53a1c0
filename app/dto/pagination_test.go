package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOffset(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		limit    int
		expected PageParams
	}{
		{name: "first page", page: 1, limit: 10, expected: PageParams{Page: 1, Limit: 10, Offset: 0}},
		{name: "third page", page: 3, limit: 25, expected: PageParams{Page: 3, Limit: 25, Offset: 50}},
		{name: "zero page defaults", page: 0, limit: 20, expected: PageParams{Page: 1, Limit: 20, Offset: 0}},
		{name: "negative limit defaults", page: 2, limit: -5, expected: PageParams{Page: 2, Limit: 10, Offset: 10}},
		{name: "both invalid", page: -1, limit: 0, expected: PageParams{Page: 1, Limit: 10, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeOffset(tt.page, tt.limit))
		})
	}
}

func TestParsePageParams(t *testing.T) {
	assert.Equal(t, PageParams{Page: 1, Limit: 10, Offset: 0}, ParsePageParams("", ""))
	assert.Equal(t, PageParams{Page: 1, Limit: 10, Offset: 0}, ParsePageParams("abc", "1.5"))
	assert.Equal(t, PageParams{Page: 4, Limit: 50, Offset: 150}, ParsePageParams(" 4 ", "50"))
}

func TestBuildPageEnvelope(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	t.Run("first of three pages", func(t *testing.T) {
		env := BuildPageEnvelope(rows, 25, 1, 10)
		assert.Len(t, env.Data, 10)
		assert.Equal(t, 1, env.Pagination.CurrentPage)
		assert.Equal(t, 3, env.Pagination.TotalPages)
		assert.Equal(t, int64(25), env.Pagination.TotalItems)
		assert.Equal(t, 10, env.Pagination.ItemsPerPage)
		assert.True(t, env.Pagination.HasNextPage)
		assert.False(t, env.Pagination.HasPrevPage)
		require.NotNil(t, env.Pagination.NextPage)
		assert.Equal(t, 2, *env.Pagination.NextPage)
		assert.Nil(t, env.Pagination.PrevPage)
	})

	t.Run("last page", func(t *testing.T) {
		env := BuildPageEnvelope(rows[:5], 25, 3, 10)
		assert.Equal(t, 3, env.Pagination.TotalPages)
		assert.False(t, env.Pagination.HasNextPage)
		assert.True(t, env.Pagination.HasPrevPage)
		assert.Nil(t, env.Pagination.NextPage)
		require.NotNil(t, env.Pagination.PrevPage)
		assert.Equal(t, 2, *env.Pagination.PrevPage)
	})

	t.Run("empty result", func(t *testing.T) {
		env := BuildPageEnvelope[int](nil, 0, 1, 10)
		assert.NotNil(t, env.Data)
		assert.Empty(t, env.Data)
		assert.Equal(t, 0, env.Pagination.TotalPages)
		assert.False(t, env.Pagination.HasNextPage)
		assert.False(t, env.Pagination.HasPrevPage)
	})

	t.Run("exact multiple", func(t *testing.T) {
		env := BuildPageEnvelope(rows, 20, 2, 10)
		assert.Equal(t, 2, env.Pagination.TotalPages)
		assert.False(t, env.Pagination.HasNextPage)
	})
}

func TestComputeOffsetCapsLimit(t *testing.T) {
	p := ComputeOffset(2, 100000)
	assert.Equal(t, 500, p.Limit)
	assert.Equal(t, 500, p.Offset)
}
