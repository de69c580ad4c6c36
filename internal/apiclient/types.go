package apiclient

import (
	"net/url"
	"strconv"
	"time"
)

// AuthTokens is the body returned by login and refresh.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Credentials are posted to /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=4,max=100"`
}

// User is the authenticated profile.
type User struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

// Category is read-only from the client's side.
type Category struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"`
	CreationAt time.Time `json:"creationAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// Product is owned by the remote service.
type Product struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Category    Category  `json:"category"`
	CreationAt  time.Time `json:"creationAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateProductInput is the body of POST /products.
type CreateProductInput struct {
	Title       string   `json:"title" validate:"required,min=3,max=100"`
	Price       float64  `json:"price" validate:"gt=0,lte=1000000"`
	Description string   `json:"description" validate:"required,min=10,max=1000"`
	CategoryID  int      `json:"categoryId" validate:"gt=0"`
	Images      []string `json:"images" validate:"min=1,max=5,dive,url"`
}

// UpdateProductInput is the body of PUT /products/{id}. Nil fields are left
// unchanged by the server.
type UpdateProductInput struct {
	Title       *string  `json:"title,omitempty" validate:"omitnil,min=3,max=100"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gt=0,lte=1000000"`
	Description *string  `json:"description,omitempty" validate:"omitnil,min=10,max=1000"`
	CategoryID  *int     `json:"categoryId,omitempty" validate:"omitnil,gt=0"`
	Images      []string `json:"images,omitempty" validate:"omitempty,min=1,max=5,dive,url"`
}

// Window selects a slice of the product list.
type Window struct {
	Limit  int
	Offset int
}

// ProductQuery maps onto the query string of GET /products.
// Zero values are omitted.
type ProductQuery struct {
	Title      string
	CategoryID int
	PriceMin   *float64
	PriceMax   *float64
	Window     *Window
}

// Values encodes the query the way the API expects it.
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	if q.CategoryID != 0 {
		v.Set("categoryId", strconv.Itoa(q.CategoryID))
	}
	if q.PriceMin != nil {
		v.Set("price_min", strconv.FormatFloat(*q.PriceMin, 'f', -1, 64))
	}
	if q.PriceMax != nil {
		v.Set("price_max", strconv.FormatFloat(*q.PriceMax, 'f', -1, 64))
	}
	if q.Window != nil {
		v.Set("limit", strconv.Itoa(q.Window.Limit))
		v.Set("offset", strconv.Itoa(q.Window.Offset))
	}
	return v
}
