package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// StripeClient drives the PaymentIntents API over plain REST. Amounts are in
// minor currency units end to end.
type StripeClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewStripeClient(secretKey string, opts ...StripeOption) *StripeClient {
	c := &StripeClient{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type StripeOption func(*StripeClient)

func WithBaseURL(u string) StripeOption {
	return func(c *StripeClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) StripeOption {
	return func(c *StripeClient) { c.http = h }
}

func (c *StripeClient) CreateAuthorization(ctx context.Context, p CreateParams) (*Authorization, error) {
	const op = "payment.StripeClient.CreateAuthorization"

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	form.Set("currency", p.Currency)
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var intent paymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &intent); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return intent.toAuthorization(), nil
}

func (c *StripeClient) RetrieveAuthorization(ctx context.Context, id string) (*Authorization, error) {
	const op = "payment.StripeClient.RetrieveAuthorization"

	var intent paymentIntent
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(id), nil, &intent); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return intent.toAuthorization(), nil
}

func (c *StripeClient) VoidAuthorization(ctx context.Context, id string) error {
	const op = "payment.StripeClient.VoidAuthorization"

	var intent paymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents/"+url.PathEscape(id)+"/cancel", nil, &intent); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

type paymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// toAuthorization collapses the intent state machine into the three outcomes
// the booking core cares about: anything between creation and capture is
// still pending.
func (pi paymentIntent) toAuthorization() *Authorization {
	status := AuthPending
	switch pi.Status {
	case "succeeded":
		status = AuthSucceeded
	case "canceled":
		status = AuthFailed
	}

	return &Authorization{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       status,
	}
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s (%s)", apiErr.Error.Message, apiErr.Error.Type)
		}
		return fmt.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}

	return json.Unmarshal(raw, out)
}
