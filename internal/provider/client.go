// Package provider implements a client for the remote SMM order API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrMalformed means the provider answered with something we cannot read.
var ErrMalformed = errors.New("malformed provider response")

// APIError is an explicit rejection reported by the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider rejected request (http %d): %s", e.StatusCode, e.Message)
}

// Service is one entry of the provider's service list.
type Service struct {
	ID       string          `json:"service"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Rate     decimal.Decimal `json:"rate"`
	Min      int             `json:"min"`
	Max      int             `json:"max"`
}

type OrderRequest struct {
	Service  string
	Link     string
	Quantity int
}

// OrderResult is a successfully accepted order.
type OrderResult struct {
	OrderID string
	Raw     string
}

// Status is the provider's view of an order.
type Status struct {
	Status  string
	Remains int
	Charge  decimal.Decimal
}

type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Client defines attributes of a struct available to its methods.
type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	log     *zap.SugaredLogger
}

// NewClient initializes a resty client. Every call is bounded by timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{client: rc, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, log: log}
}

// post sends body merged with the api key and returns the raw response body.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) ([]byte, int, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["key"] = c.apiKey
	resp, err := c.client.R().SetContext(ctx).SetBody(body).Post(c.baseURL + path)
	if err != nil {
		c.log.Warnw("provider request failed", "path", path, "err", err)
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// checkError turns non-2xx statuses and {"error": ...} bodies into *APIError.
func checkError(raw []byte, status int) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	if env.Error != "" {
		return &APIError{StatusCode: status, Message: env.Error}
	}
	if status < 200 || status > 299 {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	}
	return nil
}

// Services lists the provider's catalogue.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	raw, status, err := c.post(ctx, "/services", map[string]interface{}{"action": "services"})
	if err != nil {
		return nil, err
	}
	if err := checkError(raw, status); err != nil {
		return nil, err
	}
	var wire []struct {
		Service  flexString `json:"service"`
		Name     string     `json:"name"`
		Type     string     `json:"type"`
		Category string     `json:"category"`
		Rate     flexString `json:"rate"`
		Min      flexString `json:"min"`
		Max      flexString `json:"max"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]Service, 0, len(wire))
	for _, w := range wire {
		out = append(out, Service{
			ID:       string(w.Service),
			Name:     w.Name,
			Type:     w.Type,
			Category: w.Category,
			Rate:     w.Rate.asDecimal(),
			Min:      w.Min.asInt(),
			Max:      w.Max.asInt(),
		})
	}
	return out, nil
}

// PlaceOrder submits an order. Any non-success answer is an error.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	raw, status, err := c.post(ctx, "/order", map[string]interface{}{
		"action":   "add",
		"service":  req.Service,
		"link":     req.Link,
		"quantity": req.Quantity,
	})
	if err != nil {
		return nil, err
	}
	if err := checkError(raw, status); err != nil {
		return nil, err
	}
	var wire struct {
		Order flexString `json:"order"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if wire.Order == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrMalformed)
	}
	c.log.Infow("provider order placed", "service", req.Service, "quantity", req.Quantity, "api_order_id", string(wire.Order))
	return &OrderResult{OrderID: string(wire.Order), Raw: string(raw)}, nil
}

// OrderStatus checks the status of a previously placed order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*Status, error) {
	raw, status, err := c.post(ctx, "/status", map[string]interface{}{"action": "status", "order": orderID})
	if err != nil {
		return nil, err
	}
	if err := checkError(raw, status); err != nil {
		return nil, err
	}
	var wire struct {
		Status  string     `json:"status"`
		Remains flexString `json:"remains"`
		Charge  flexString `json:"charge"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if wire.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrMalformed)
	}
	remains, err := wire.Remains.parseInt()
	if err != nil {
		return nil, fmt.Errorf("%w: remains %q", ErrMalformed, wire.Remains)
	}
	return &Status{Status: wire.Status, Remains: remains, Charge: wire.Charge.asDecimal()}, nil
}

// Balance returns the reseller account balance held at the provider.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	raw, status, err := c.post(ctx, "/balance", map[string]interface{}{"action": "balance"})
	if err != nil {
		return nil, err
	}
	if err := checkError(raw, status); err != nil {
		return nil, err
	}
	var wire struct {
		Balance  flexString `json:"balance"`
		Currency string     `json:"currency"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Balance{Balance: wire.Balance.asDecimal(), Currency: wire.Currency}, nil
}

// flexString accepts JSON strings and numbers alike; providers mix both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(str))
		return nil
	}
	*f = flexString(s)
	return nil
}

func (f flexString) asDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (f flexString) asInt() int {
	n, _ := f.parseInt()
	return n
}

// parseInt truncates decimal forms such as "150.0". Empty reads as zero.
func (f flexString) parseInt() (int, error) {
	if f == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return 0, err
	}
	return int(d.IntPart()), nil
}
