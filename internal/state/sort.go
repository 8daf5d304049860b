package state

import (
	"sort"

	"github.com/five82/periscope/internal/api"
)

// SortMode orders the record table.
type SortMode string

const (
	SortUpdatedDesc SortMode = "updated_desc"
	SortUpdatedAsc  SortMode = "updated_asc"
	SortIDDesc      SortMode = "id_desc"
	SortIDAsc       SortMode = "id_asc"
)

var sortModes = []SortMode{SortUpdatedDesc, SortUpdatedAsc, SortIDDesc, SortIDAsc}

// PageSizes are the selectable rows per page.
var PageSizes = []int{5, 10, 20, 50}

// DefaultPageSize is the initial rows per page.
const DefaultPageSize = 10

// Label is the short human name of the mode.
func (m SortMode) Label() string {
	switch m {
	case SortUpdatedAsc:
		return "oldest update"
	case SortIDDesc:
		return "id high→low"
	case SortIDAsc:
		return "id low→high"
	default:
		return "latest update"
	}
}

// Next cycles to the following mode.
func (m SortMode) Next() SortMode {
	for i, mode := range sortModes {
		if mode == m {
			return sortModes[(i+1)%len(sortModes)]
		}
	}
	return SortUpdatedDesc
}

// ParseSortMode returns the mode named s, or SortUpdatedDesc.
func ParseSortMode(s string) SortMode {
	for _, mode := range sortModes {
		if string(mode) == s {
			return mode
		}
	}
	return SortUpdatedDesc
}

// SortRecords returns a sorted copy of items.
func SortRecords(items []api.Record, mode SortMode) []api.Record {
	out := cloneRecords(items)
	switch mode {
	case SortUpdatedAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ParsedUpdatedAt().Before(out[j].ParsedUpdatedAt())
		})
	case SortIDDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	case SortIDAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ParsedUpdatedAt().After(out[j].ParsedUpdatedAt())
		})
	}
	return out
}

// NextPageSize cycles through PageSizes.
func NextPageSize(size int) int {
	for i, n := range PageSizes {
		if n == size {
			return PageSizes[(i+1)%len(PageSizes)]
		}
	}
	return DefaultPageSize
}

// Paginate returns the items on page (1-based, clamped to [1,totalPages])
// together with the clamped page and the page count. An empty list has one
// empty page.
func Paginate(items []api.Record, page, perPage int) ([]api.Record, int, int) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	totalPages := 1
	if len(items) > 0 {
		totalPages = (len(items) + perPage - 1) / perPage
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil, page, totalPages
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page, totalPages
}
