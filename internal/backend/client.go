package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"foodseer/internal/auth"
)

// Client talks to the FoodSeer backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

type bearerTransport struct {
	rt     http.RoundTripper
	tokens auth.TokenSource
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	if t.tokens != nil {
		if tok, err := t.tokens.Token(); err == nil && tok != "" {
			cl.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return t.rt.RoundTrip(cl)
}

func New(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   60 * time.Second,
			Transport: bearerTransport{rt: http.DefaultTransport, tokens: tokens},
		},
	}
}

func (c *Client) CurrentUser(ctx context.Context) (UserProfile, error) {
	var out UserProfile
	if err := c.get(ctx, "/api/users/me", &out); err != nil {
		return UserProfile{}, fmt.Errorf("fetch current user: %w", err)
	}
	return out, nil
}

func (c *Client) AllFoods(ctx context.Context) ([]FoodItem, error) {
	var out []FoodItem
	if err := c.get(ctx, "/api/foods", &out); err != nil {
		return nil, fmt.Errorf("fetch foods: %w", err)
	}
	return out, nil
}

func (c *Client) SendChat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var out ChatReply
	if err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return ChatReply{}, fmt.Errorf("send chat message: %w", err)
	}
	if out.Message == "" {
		return ChatReply{}, fmt.Errorf("send chat message: empty reply")
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) error {
	if err := c.post(ctx, "/api/orders", req, nil); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func(b io.ReadCloser) {
		if err := b.Close(); err != nil {
		}
	}(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
