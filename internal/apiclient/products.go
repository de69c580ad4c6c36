package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// ListProducts calls GET /products. The API returns a bare array with no
// total count.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	var products []Product
	if err := c.call(ctx, http.MethodGet, "/products", q.Values(), nil, &products, true); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct calls GET /products/{id}.
func (c *Client) GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &product, true); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct calls POST /products.
func (c *Client) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodPost, "/products", nil, in, &product, true); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct calls PUT /products/{id} with a partial body.
func (c *Client) UpdateProduct(ctx context.Context, id int, in UpdateProductInput) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), nil, in, &product, true); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct calls DELETE /products/{id} and returns the API's verdict.
func (c *Client) DeleteProduct(ctx context.Context, id int) (bool, error) {
	var deleted bool
	if err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil, &deleted, true); err != nil {
		return false, err
	}
	return deleted, nil
}
