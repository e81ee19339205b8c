package api

import (
	"context"
	"net/http"
	"net/url"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
)

// Login calls POST /auth/login and returns the raw response object.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, "auth.login", http.MethodPost, "/auth/login", false, creds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, reg model.Registration) error {
	return c.do(ctx, "auth.register", http.MethodPost, "/auth/register", false, reg, nil)
}

// ListProducts calls GET /products.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, "products.list", http.MethodGet, "/products", false, nil, &out)
	return out, err
}

// CreateProduct calls POST /products/create.
func (c *Client) CreateProduct(ctx context.Context, d model.ProductDraft) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, "products.create", http.MethodPost, "/products/create", true, d, &out)
	if err == nil && out.ID == "" {
		err = &apperr.Error{Kind: apperr.KindServer, Op: "products.create", Message: "response carries no product id"}
	}
	return out, err
}

// UpdateProduct calls PUT /products/update/{id}.
func (c *Client) UpdateProduct(ctx context.Context, id string, d model.ProductDraft) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, "products.update", http.MethodPut, "/products/update/"+url.PathEscape(id), true, d, &out)
	return out, err
}

// DeleteProduct calls DELETE /products/delete/{id}.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, "products.delete", http.MethodDelete, "/products/delete/"+url.PathEscape(id), true, nil, nil)
}

type cartView struct {
	Items []model.CartLine `json:"items"`
}

// ViewCart calls GET /cart/view.
func (c *Client) ViewCart(ctx context.Context) ([]model.CartLine, error) {
	var out cartView
	if err := c.do(ctx, "cart.view", http.MethodGet, "/cart/view", true, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddToCart calls POST /cart/add.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	return c.do(ctx, "cart.add", http.MethodPost, "/cart/add", true, addToCartRequest{ProductID: productID, Quantity: quantity}, nil)
}

type changeRequest struct {
	Change int `json:"change"`
}

// UpdateCartLine calls PUT /cart/update/{productId} with a ±1 change.
func (c *Client) UpdateCartLine(ctx context.Context, productID string, change int) error {
	return c.do(ctx, "cart.update", http.MethodPut, "/cart/update/"+url.PathEscape(productID), true, changeRequest{Change: change}, nil)
}

// RemoveCartLine calls DELETE /cart/remove/{productId}.
func (c *Client) RemoveCartLine(ctx context.Context, productID string) error {
	return c.do(ctx, "cart.remove", http.MethodDelete, "/cart/remove/"+url.PathEscape(productID), true, nil, nil)
}

type createOrderRequest struct {
	CartItems []model.CartLine `json:"cartItems"`
}

// CreateOrder calls POST /orders/create with the cart snapshot.
func (c *Client) CreateOrder(ctx context.Context, lines []model.CartLine) error {
	return c.do(ctx, "orders.create", http.MethodPost, "/orders/create", true, createOrderRequest{CartItems: lines}, nil)
}

// MyOrders calls GET /orders/my-orders.
func (c *Client) MyOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, "orders.mine", http.MethodGet, "/orders/my-orders", true, nil, &out)
	return out, err
}

// AllOrders calls GET /orders (admin).
func (c *Client) AllOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, "orders.list", http.MethodGet, "/orders", true, nil, &out)
	return out, err
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateOrderStatus calls PUT /orders/update/{id} (admin).
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "orders.update", http.MethodPut, "/orders/update/"+url.PathEscape(id), true, statusRequest{Status: status}, &out)
	return out, err
}

// MarkOrderPaid calls POST /orders/success after the payment provider returns.
func (c *Client) MarkOrderPaid(ctx context.Context) error {
	return c.do(ctx, "orders.success", http.MethodPost, "/orders/success", true, struct{}{}, nil)
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// Checkout calls POST /payments/checkout and returns the provider URL.
func (c *Client) Checkout(ctx context.Context, req model.CheckoutRequest) (string, error) {
	var out checkoutResponse
	if err := c.do(ctx, "payments.checkout", http.MethodPost, "/payments/checkout", true, req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &apperr.Error{Kind: apperr.KindServer, Op: "payments.checkout", Message: "response carries no payment url"}
	}
	return out.URL, nil
}
