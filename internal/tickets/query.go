package tickets

import (
	"sort"
	"strings"

	"ticket-marketplace/internal/models"
)

// DefaultPageSize matches the public listing grid.
const DefaultPageSize = 6

const (
	SortPriceLowToHigh = "low-to-high"
	SortPriceHighToLow = "high-to-low"
)

// ListParams compose as: search AND transport type, then sort, then
// paginate. Callers reset Page to 1 whenever a filter changes.
type ListParams struct {
	Search        string
	TransportType string
	Sort          string
	Page          int
	PageSize      int
}

type BrowseResult struct {
	Tickets    []models.Ticket `json:"tickets"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// ApplyListParams filters, sorts and paginates in memory. Sorting is stable
// so price ties keep their original relative order. A page past the end
// yields an empty slice, not an error.
func ApplyListParams(all []models.Ticket, p ListParams) BrowseResult {
	filtered := make([]models.Ticket, 0, len(all))

	query := strings.ToLower(strings.TrimSpace(p.Search))
	transport := strings.ToLower(strings.TrimSpace(p.TransportType))

	for _, t := range all {
		if query != "" {
			from := strings.ToLower(t.From)
			to := strings.ToLower(t.To)
			route := from + " " + to
			if !strings.Contains(from, query) && !strings.Contains(to, query) && !strings.Contains(route, query) {
				continue
			}
		}
		if transport != "" && strings.ToLower(string(t.TransportType)) != transport {
			continue
		}
		filtered = append(filtered, t)
	}

	switch p.Sort {
	case SortPriceLowToHigh:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Price < filtered[j].Price })
	case SortPriceHighToLow:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Price > filtered[j].Price })
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return BrowseResult{
		Tickets:    filtered[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
