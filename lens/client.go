package lens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var apiCallHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "lens_api_call_duration",
	Help:    "A histogram of protocol API call durations",
	Buckets: prometheus.ExponentialBuckets(1, 2, 15),
}, []string{"op", "status"})

// APIError is an error response from the protocol. The protocol exposes no
// structured error codes, only a message string and the HTTP status.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Client is the read-only protocol client.
type Client interface {
	FetchPost(ctx context.Context, id string) (*AnyPost, error)
	FetchPosts(ctx context.Context, req PostsRequest) (*PostPage, error)
	FetchPostReferences(ctx context.Context, req ReferencesRequest) (*PostPage, error)
	FetchFollowing(ctx context.Context, req FollowingRequest) (*FollowingPage, error)
	FetchAccount(ctx context.Context, address string) (*Account, error)
	FetchGroup(ctx context.Context, address string) (*Group, error)
}

// SessionClient is an authenticated client capable of issuing write
// mutations on behalf of the session account.
type SessionClient interface {
	Client

	FetchNotifications(ctx context.Context) ([]*Notification, error)
	ExecutePostAction(ctx context.Context, req ExecutePostActionRequest) (*ActionResult, error)
	Post(ctx context.Context, req PostRequest) (*PostResult, error)
	DeletePost(ctx context.Context, id string) error
	UnmuteAccount(ctx context.Context, account string) error
	WaitForTransaction(ctx context.Context, txHash string) error
}

// HTTPClient talks to the protocol API over JSON/HTTP.
type HTTPClient struct {
	BaseURL string
	// Token is the session access token; empty for read-only use.
	Token string

	HTTPClient *http.Client
}

var _ SessionClient = (*HTTPClient)(nil)

// NewClient creates a read-only client for the given API endpoint.
func NewClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithSession returns a client sharing this client's transport but
// authenticated with the given session token.
func (c *HTTPClient) WithSession(token string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    c.BaseURL,
		Token:      token,
		HTTPClient: c.HTTPClient,
	}
}

func (c *HTTPClient) call(ctx context.Context, op string, in, out any) error {
	start := time.Now()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		apiCallHist.WithLabelValues(op, "error").Observe(float64(time.Since(start).Milliseconds()))
		return fmt.Errorf("%s call failed: %w", op, err)
	}
	defer resp.Body.Close()

	apiCallHist.WithLabelValues(op, resp.Status).Observe(float64(time.Since(start).Milliseconds()))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
			apiErr.Status = resp.StatusCode
			return &apiErr
		}
		return &APIError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s: unexpected status %d", op, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	return nil
}

func (c *HTTPClient) FetchPost(ctx context.Context, id string) (*AnyPost, error) {
	var out AnyPost
	if err := c.call(ctx, "post", map[string]string{"post": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchPosts(ctx context.Context, req PostsRequest) (*PostPage, error) {
	var out PostPage
	if err := c.call(ctx, "posts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchPostReferences(ctx context.Context, req ReferencesRequest) (*PostPage, error) {
	var out PostPage
	if err := c.call(ctx, "postReferences", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchFollowing(ctx context.Context, req FollowingRequest) (*FollowingPage, error) {
	var out FollowingPage
	if err := c.call(ctx, "following", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchAccount(ctx context.Context, address string) (*Account, error) {
	var out Account
	if err := c.call(ctx, "account", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchGroup(ctx context.Context, address string) (*Group, error) {
	var out Group
	if err := c.call(ctx, "group", map[string]string{"group": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchNotifications(ctx context.Context) ([]*Notification, error) {
	var out struct {
		Items []*Notification `json:"items"`
	}
	if err := c.call(ctx, "notifications", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *HTTPClient) ExecutePostAction(ctx context.Context, req ExecutePostActionRequest) (*ActionResult, error) {
	var out ActionResult
	if err := c.call(ctx, "executePostAction", req, &out); err != nil {
		return nil, err
	}
	if out.Typename == TxWillFail {
		return nil, &APIError{Message: out.Reason}
	}
	return &out, nil
}

func (c *HTTPClient) Post(ctx context.Context, req PostRequest) (*PostResult, error) {
	var out PostResult
	if err := c.call(ctx, "createPost", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeletePost(ctx context.Context, id string) error {
	return c.call(ctx, "deletePost", map[string]string{"post": id}, nil)
}

func (c *HTTPClient) UnmuteAccount(ctx context.Context, account string) error {
	return c.call(ctx, "unmuteAccount", map[string]string{"account": account}, nil)
}

// WaitForTransaction blocks until the protocol indexer observes the
// transaction as finalized, polling with a short backoff.
func (c *HTTPClient) WaitForTransaction(ctx context.Context, txHash string) error {
	for {
		var out struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}
		if err := c.call(ctx, "transactionStatus", map[string]string{"txHash": txHash}, &out); err != nil {
			return err
		}

		switch out.Status {
		case "FINISHED":
			return nil
		case "FAILED":
			return &APIError{Message: out.Reason}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
