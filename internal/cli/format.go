package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/erauner12/catalog-admin/internal/catalog"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func formatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', 2, 64)
}

// formatProductPage renders a page of products with paging hints
func formatProductPage(page catalog.Page, f catalog.Filter) string {
	var b strings.Builder

	if page.FetchedAll {
		reasons := []string{}
		if f.PriceFiltered() {
			reasons = append(reasons, "price filter")
		}
		if f.Sorted() {
			reasons = append(reasons, "sorting")
		}
		msg := fmt.Sprintf("%s active: the full catalog was fetched and %d matching product(s) paged locally.",
			strings.Join(reasons, " and "), page.Matched)
		b.WriteString(bannerStyle.Render(msg))
		b.WriteString("\n")
	}

	if len(page.Items) == 0 {
		if page.Page > 1 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("No products on page %d.", page.Page)))
		} else {
			b.WriteString(mutedStyle.Render("No products match these filters."))
		}
		return b.String()
	}

	t := newTable("ID", "Title", "Price", "Category")
	for _, p := range page.Items {
		t.Row(strconv.Itoa(p.ID), p.Title, formatPrice(p.Price), p.Category.Name)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	footer := fmt.Sprintf("Page %d · %d shown", page.Page, len(page.Items))
	if page.HasNextPage {
		footer += fmt.Sprintf(" · more on page %d (--page %d)", page.Page+1, page.Page+1)
	} else {
		footer += " · last page"
	}
	b.WriteString(mutedStyle.Render(footer))
	return b.String()
}

func formatProduct(p *apiclient.Product) string {
	lines := []string{
		titleStyle.Render(p.Title),
		labelStyle.Render("ID") + strconv.Itoa(p.ID),
		labelStyle.Render("Price") + formatPrice(p.Price),
		labelStyle.Render("Category") + fmt.Sprintf("%s (%d)", p.Category.Name, p.Category.ID),
		labelStyle.Render("Description") + p.Description,
	}
	for i, img := range p.Images {
		label := ""
		if i == 0 {
			label = "Images"
		}
		lines = append(lines, labelStyle.Render(label)+img)
	}
	if !p.UpdatedAt.IsZero() {
		lines = append(lines, labelStyle.Render("Updated")+p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return strings.Join(lines, "\n")
}

func formatCategories(categories []apiclient.Category) string {
	if len(categories) == 0 {
		return mutedStyle.Render("No categories.")
	}
	t := newTable("ID", "Name")
	for _, c := range categories {
		t.Row(strconv.Itoa(c.ID), c.Name)
	}
	return t.String()
}

func formatUser(u *apiclient.User) string {
	return strings.Join([]string{
		titleStyle.Render(u.Name),
		labelStyle.Render("ID") + strconv.Itoa(u.ID),
		labelStyle.Render("Email") + u.Email,
		labelStyle.Render("Role") + u.Role,
	}, "\n")
}

func formatValidation(verr *apiclient.ValidationError) string {
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s %s", warningStyle.Render(name), verr.Fields[name]))
	}
	return strings.Join(lines, "\n")
}
