package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

// Publisher runs the two-step publish flow: upload the content payload to
// content-addressed storage, then submit the post mutation. There is no
// chain-switch or signature branch here.
type Publisher struct {
	storage *lens.StorageClient
}

func NewPublisher(storage *lens.StorageClient) *Publisher {
	return &Publisher{storage: storage}
}

// Receipt is the result of a successful publish.
type Receipt struct {
	ID     string `json:"id"`
	TxHash string `json:"hash,omitempty"`
}

// CreatePost uploads the metadata payload and submits the post mutation.
// replyingTo, when set, publishes a comment on that post. collect, when
// enabled, attaches a simple-collect action built from the author's
// persisted composer settings.
func (p *Publisher) CreatePost(ctx context.Context, client lens.SessionClient, metadata any, replyingTo string, collect *models.CollectConfig) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "createPost")
	defer span.End()

	contentURI, err := p.storage.UploadJSON(ctx, metadata)
	if err != nil {
		return nil, &UpstreamError{Op: "uploadMetadata", Err: err}
	}

	req := lens.PostRequest{
		ContentURI: contentURI,
		CommentOn:  replyingTo,
	}
	if collect != nil && collect.Enabled {
		req.Collect = collectActionConfig(collect)
	}

	result, err := client.Post(ctx, req)
	if err != nil {
		return nil, classifyUpstreamError("post", err)
	}

	if result.Reason != "" {
		return nil, &UpstreamError{Op: "post", Err: &lens.APIError{Message: result.Reason}}
	}

	receipt := &Receipt{ID: result.ID, TxHash: result.TxHash}
	if receipt.ID == "" {
		receipt.ID = result.TxID
	}

	slog.Info("created post", "id", receipt.ID, "hash", receipt.TxHash, "uri", contentURI)
	return receipt, nil
}

// collectActionConfig maps the composer settings to the protocol's
// collect action config. GHO prices collect in the native currency;
// anything else goes through the known ERC-20 table.
func collectActionConfig(cfg *models.CollectConfig) *lens.CollectActionConfig {
	out := &lens.CollectActionConfig{
		CollectLimit: cfg.CollectLimit,
		FollowerOnly: cfg.FollowersOnly,
	}
	if cfg.EndsAt != nil {
		out.EndsAt = cfg.EndsAt.UTC().Format(time.RFC3339)
	}
	if cfg.Price != nil && cfg.Price.Amount != "" {
		if contract, ok := erc20Contracts[cfg.Price.Currency]; ok {
			out.Erc20Amount = cfg.Price.Amount
			out.Erc20Contract = contract
		} else {
			out.NativeAmount = cfg.Price.Amount
		}
	}
	return out
}

// erc20Contracts maps composer currency codes to token contracts.
var erc20Contracts = map[string]string{
	"WGHO": "0x6bdc36e20d267ff0dd6097799f82e78907105e2f",
}

// DeletePost submits the delete mutation for the given post id.
func DeletePost(ctx context.Context, client lens.SessionClient, id string) error {
	ctx, span := tracer.Start(ctx, "deletePost")
	defer span.End()

	if err := client.DeletePost(ctx, id); err != nil {
		return &UpstreamError{Op: "deletePost", Err: err}
	}
	return nil
}

// UnmuteAccount submits the unmute mutation for the given account.
func UnmuteAccount(ctx context.Context, client lens.SessionClient, account string) error {
	ctx, span := tracer.Start(ctx, "unmuteAccount")
	defer span.End()

	if err := client.UnmuteAccount(ctx, account); err != nil {
		return &UpstreamError{Op: "unmuteAccount", Err: err}
	}
	return nil
}
