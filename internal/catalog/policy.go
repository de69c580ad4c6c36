package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/erauner12/catalog-admin/internal/apiclient"
)

// The remote API filters by title and category and pages with limit/offset.
// It cannot sort and its price filter is unreliable, so both happen locally,
// which in turn forces local pagination over the full result set.

// Plan is the remote half of a list request.
type Plan struct {
	// FetchAll means the query carries no window and the caller must
	// filter, sort and page the full result locally.
	FetchAll bool
	Query    apiclient.ProductQuery
}

// Page is what a list request yields for display.
type Page struct {
	Items       []apiclient.Product `json:"items"`
	HasNextPage bool                `json:"hasNextPage"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"pageSize"`
	// FetchedAll is set when the whole catalog was fetched to build the page.
	FetchedAll bool `json:"fetchedAll"`
	// Matched is the post-filter total; known only when FetchedAll is set.
	Matched int `json:"matched,omitempty"`
}

// PlanFor decides what to ask the remote API for. f must carry a valid
// Page and PageSize.
func PlanFor(f Filter) Plan {
	q := apiclient.ProductQuery{
		Title:      f.Title,
		CategoryID: f.CategoryID,
	}

	if f.PriceFiltered() || f.Sorted() {
		return Plan{FetchAll: true, Query: q}
	}

	q.Window = &apiclient.Window{
		Limit:  f.PageSize + 1,
		Offset: (f.Page - 1) * f.PageSize,
	}
	return Plan{Query: q}
}

// Reconcile turns the remote result into the requested page. It never
// modifies items.
func Reconcile(f Filter, plan Plan, items []apiclient.Product) Page {
	page := Page{Page: f.Page, PageSize: f.PageSize, FetchedAll: plan.FetchAll}

	if !plan.FetchAll {
		// The window asked for one item more than a page
		n := len(items)
		if n > f.PageSize {
			n = f.PageSize
		}
		page.Items = append([]apiclient.Product{}, items[:n]...)
		page.HasNextPage = len(items) > f.PageSize
		return page
	}

	matched := filterByPrice(items, f.PriceMin, f.PriceMax)
	if f.Sorted() {
		sortProducts(matched, f.SortColumn, f.SortDirection)
	}

	start := (f.Page - 1) * f.PageSize
	end := f.Page * f.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	page.Items = matched[start:end]
	page.HasNextPage = len(matched) > f.Page*f.PageSize
	page.Matched = len(matched)
	return page
}

// filterByPrice keeps min <= price <= max. An absent bound is 0 or +Inf.
// Always returns a fresh slice.
func filterByPrice(items []apiclient.Product, minPrice, maxPrice *float64) []apiclient.Product {
	lo, hi := 0.0, math.Inf(1)
	if minPrice != nil {
		lo = *minPrice
	}
	if maxPrice != nil {
		hi = *maxPrice
	}

	out := make([]apiclient.Product, 0, len(items))
	for _, p := range items {
		if p.Price >= lo && p.Price <= hi {
			out = append(out, p)
		}
	}
	return out
}

func sortProducts(items []apiclient.Product, col SortColumn, dir SortDirection) {
	compare := func(a, b apiclient.Product) int {
		switch col {
		case SortTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortCategory:
			return strings.Compare(strings.ToLower(a.Category.Name), strings.ToLower(b.Category.Name))
		case SortPrice:
			switch {
			case a.Price < b.Price:
				return -1
			case a.Price > b.Price:
				return 1
			}
		}
		return 0
	}

	sort.SliceStable(items, func(i, j int) bool {
		c := compare(items[i], items[j])
		if dir == DirectionDesc {
			return c > 0
		}
		return c < 0
	})
}
