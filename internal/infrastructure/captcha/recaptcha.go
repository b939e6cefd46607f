// Package captcha verifies reCAPTCHA tokens against Google's siteverify API.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is Google's reCAPTCHA verification URL.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Recaptcha implements ports.CaptchaVerifier.
type Recaptcha struct {
	secret   string
	endpoint string
	client   *http.Client
}

// Option customises a Recaptcha verifier.
type Option func(*Recaptcha)

// WithEndpoint overrides the verification URL.
func WithEndpoint(endpoint string) Option {
	return func(r *Recaptcha) { r.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recaptcha) { r.client = c }
}

// NewRecaptcha returns a verifier for secret.
func NewRecaptcha(secret string, opts ...Option) *Recaptcha {
	r := &Recaptcha{
		secret:   secret,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify reports whether token is a valid captcha solution. Transport and
// decoding failures are returned as errors; a rejected token is (false, nil).
func (r *Recaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", r.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("recaptcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("recaptcha: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("recaptcha: unexpected status %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("recaptcha: decode response: %w", err)
	}
	return out.Success, nil
}
