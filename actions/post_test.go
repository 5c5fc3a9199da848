package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

type postingClient struct {
	fakeClient

	postReq    *lens.PostRequest
	postResult *lens.PostResult
	postErr    error
}

func (p *postingClient) Post(ctx context.Context, req lens.PostRequest) (*lens.PostResult, error) {
	p.postReq = &req
	return p.postResult, p.postErr
}

func storageServer(t *testing.T) *lens.StorageClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uri":"lens://uploaded"}`))
	}))
	t.Cleanup(srv.Close)
	return lens.NewStorageClient(srv.URL)
}

func TestCreatePost(t *testing.T) {
	client := &postingClient{
		postResult: &lens.PostResult{ID: "new-post", TxHash: "0xhash"},
	}
	pub := NewPublisher(storageServer(t))

	receipt, err := pub.CreatePost(context.Background(), client, map[string]any{"content": "hi"}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ID != "new-post" || receipt.TxHash != "0xhash" {
		t.Errorf("receipt = %+v", receipt)
	}
	if client.postReq.ContentURI != "lens://uploaded" {
		t.Errorf("contentUri = %q", client.postReq.ContentURI)
	}
	if client.postReq.Collect != nil {
		t.Error("collect config attached without settings")
	}
}

func TestCreatePostComment(t *testing.T) {
	client := &postingClient{postResult: &lens.PostResult{ID: "c1"}}
	pub := NewPublisher(storageServer(t))

	_, err := pub.CreatePost(context.Background(), client, map[string]any{"content": "reply"}, "parent-id", nil)
	if err != nil {
		t.Fatal(err)
	}
	if client.postReq.CommentOn != "parent-id" {
		t.Errorf("commentOn = %q", client.postReq.CommentOn)
	}
}

func TestCreatePostIDFallsBackToTxID(t *testing.T) {
	client := &postingClient{postResult: &lens.PostResult{TxID: "tx-123"}}
	pub := NewPublisher(storageServer(t))

	receipt, err := pub.CreatePost(context.Background(), client, map[string]any{}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ID != "tx-123" {
		t.Errorf("id = %q", receipt.ID)
	}
}

func TestCreatePostRejected(t *testing.T) {
	client := &postingClient{
		postResult: &lens.PostResult{Reason: "Banned from feed"},
	}
	pub := NewPublisher(storageServer(t))

	if _, err := pub.CreatePost(context.Background(), client, map[string]any{}, "", nil); err == nil {
		t.Fatal("a reason-bearing result is a failure")
	}
}

func TestCollectActionConfig(t *testing.T) {
	limit := 3
	followers := true
	ends := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	cfg := collectActionConfig(&models.CollectConfig{
		Enabled:       true,
		CollectLimit:  &limit,
		EndsAt:        &ends,
		FollowersOnly: &followers,
		Price:         &models.CollectPrice{Amount: "5", Currency: "GHO"},
	})

	if cfg.CollectLimit == nil || *cfg.CollectLimit != 3 {
		t.Errorf("collectLimit = %v", cfg.CollectLimit)
	}
	if cfg.EndsAt != "2025-07-01T00:00:00Z" {
		t.Errorf("endsAt = %q", cfg.EndsAt)
	}
	if cfg.NativeAmount != "5" || cfg.Erc20Amount != "" {
		t.Errorf("GHO must price native: %+v", cfg)
	}
}

func TestCollectActionConfigErc20(t *testing.T) {
	cfg := collectActionConfig(&models.CollectConfig{
		Enabled: true,
		Price:   &models.CollectPrice{Amount: "10", Currency: "WGHO"},
	})

	if cfg.Erc20Amount != "10" || cfg.Erc20Contract == "" {
		t.Errorf("WGHO must price through its contract: %+v", cfg)
	}
	if cfg.NativeAmount != "" {
		t.Errorf("native amount set for erc20: %+v", cfg)
	}
}

func TestCreatePostWithCollect(t *testing.T) {
	client := &postingClient{postResult: &lens.PostResult{ID: "p1"}}
	pub := NewPublisher(storageServer(t))

	enabled := models.DefaultCollectConfig(time.Now())
	if _, err := pub.CreatePost(context.Background(), client, map[string]any{}, "", &enabled); err != nil {
		t.Fatal(err)
	}
	if client.postReq.Collect == nil {
		t.Fatal("collect config missing")
	}

	disabled := enabled
	disabled.Enabled = false
	if _, err := pub.CreatePost(context.Background(), client, map[string]any{}, "", &disabled); err != nil {
		t.Fatal(err)
	}
	if client.postReq.Collect != nil {
		t.Error("disabled settings must not attach a collect action")
	}
}
