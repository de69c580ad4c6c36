package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.call(ctx, http.MethodGet, "/categories", nil, nil, &categories, true); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) GetCategory(ctx context.Context, id int) (*Category, error) {
	var category Category
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/categories/%d", id), nil, nil, &category, true); err != nil {
		return nil, err
	}
	return &category, nil
}
