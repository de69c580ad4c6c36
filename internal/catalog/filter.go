package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/go-playground/validator/v10"
)

// DefaultPageSize is used when a Filter leaves PageSize at zero.
const DefaultPageSize = 10

// SortColumn names a sortable product column.
type SortColumn string

const (
	SortNone     SortColumn = ""
	SortTitle    SortColumn = "title"
	SortPrice    SortColumn = "price"
	SortCategory SortColumn = "category"
)

// SortDirection orders a sort. DirectionNone disables sorting.
type SortDirection string

const (
	DirectionUnset SortDirection = ""
	DirectionAsc   SortDirection = "asc"
	DirectionDesc  SortDirection = "desc"
	DirectionNone  SortDirection = "none"
)

// Filter describes one product list request.
type Filter struct {
	Title         string        `json:"title" validate:"max=100"`
	CategoryID    int           `json:"categoryId" validate:"gte=0"`
	PriceMin      *float64      `json:"priceMin" validate:"omitnil,gte=0"`
	PriceMax      *float64      `json:"priceMax" validate:"omitnil,gte=0"`
	SortColumn    SortColumn    `json:"sortColumn" validate:"omitempty,oneof=title price category"`
	SortDirection SortDirection `json:"sortDirection" validate:"omitempty,oneof=asc desc none"`
	Page          int           `json:"page" validate:"gte=1"`
	PageSize      int           `json:"pageSize" validate:"gte=1"`
}

// WithDefaults fills Page and PageSize when they are zero.
func (f Filter) WithDefaults() Filter {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	return f
}

// Sorted reports whether a sort order is active.
func (f Filter) Sorted() bool {
	return f.SortColumn != SortNone && (f.SortDirection == DirectionAsc || f.SortDirection == DirectionDesc)
}

// PriceFiltered reports whether either price bound is set.
func (f Filter) PriceFiltered() bool {
	return f.PriceMin != nil || f.PriceMax != nil
}

// Key is a stable cache key for the filter.
func (f Filter) Key() string {
	bound := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	return fmt.Sprintf("title=%s|category=%d|min=%s|max=%s|sort=%s:%s|page=%d|size=%d",
		strings.ToLower(f.Title), f.CategoryID, bound(f.PriceMin), bound(f.PriceMax),
		f.SortColumn, f.SortDirection, f.Page, f.PageSize)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so messages match what callers send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterStructValidation(filterRules, Filter{})
	return v
}

// filterRules covers the checks that span more than one field
func filterRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(Filter)

	// "none" pairs with anything; asc/desc need a column and a column needs a direction
	switch {
	case f.SortColumn != SortNone && f.SortDirection == DirectionUnset:
		sl.ReportError(f.SortDirection, "sortDirection", "SortDirection", "required_with", "sortColumn")
	case f.SortColumn == SortNone && (f.SortDirection == DirectionAsc || f.SortDirection == DirectionDesc):
		sl.ReportError(f.SortColumn, "sortColumn", "SortColumn", "required_with", "sortDirection")
	}

	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		sl.ReportError(f.PriceMax, "priceMax", "PriceMax", "gtefield", "priceMin")
	}
}

// validationError converts validator output into an apiclient.ValidationError
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &apiclient.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "required_with":
		return "must be set together with " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
