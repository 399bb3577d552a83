// Package paypal is the payment-verification oracle client. Given a payment
// reference (a PayPal order id), it asks the provider whether the payment is
// authentic and for how much. The call is the only network suspension point
// in the settlement path and is bounded by the client timeout; any transport
// failure or timeout surfaces as an error so the caller fails closed —
// unverified payments are never assumed valid.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// VerifyResult is the oracle's answer for one payment reference.
type VerifyResult struct {
	// Verified is true only when the provider reports the payment COMPLETED.
	Verified bool

	// Amount is the settled amount as the provider reports it, e.g. "65.00".
	// Settlement compares it against the order total after decimal
	// normalisation; it is deliberately kept as the raw string here.
	Amount string

	Status     string
	PayerEmail string
}

// Client talks to the PayPal REST API using client-credentials OAuth.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient builds a Client for the given API base URL (sandbox or live).
// The timeout bounds every request, token fetches included.
func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Verify looks up the payment reference with the provider.
//
// A reference is verified only when the provider knows it and reports status
// COMPLETED. An unknown reference (404) is reported as not verified rather
// than an error: that is the oracle answering "no", not failing.
func (c *Client) Verify(ctx context.Context, ref string) (VerifyResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return VerifyResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/checkout/orders/"+url.PathEscape(ref), nil)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("paypal: build order request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("paypal: get order %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return VerifyResult{Verified: false, Status: "NOT_FOUND"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return VerifyResult{}, fmt.Errorf("paypal: get order %q: unexpected status %d", ref, resp.StatusCode)
	}

	var body struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Amount struct {
				Value string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
		Payer struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return VerifyResult{}, fmt.Errorf("paypal: decode order %q: %w", ref, err)
	}

	out := VerifyResult{
		Verified:   body.Status == "COMPLETED",
		Status:     body.Status,
		PayerEmail: body.Payer.EmailAddress,
	}
	if len(body.PurchaseUnits) > 0 {
		out.Amount = body.PurchaseUnits[0].Amount.Value
	}
	return out, nil
}

// accessToken returns a cached OAuth token, fetching a fresh one when the
// cached token is within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: fetch access token: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token in response")
	}

	c.token = body.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return c.token, nil
}
