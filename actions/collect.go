package actions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
	"github.com/cartel-sh/box/wallet"
)

var tracer = otel.Tracer("actions")

// CollectState is the orchestrator's current position in the collect
// flow.
type CollectState string

const (
	StateIdle                    CollectState = "idle"
	StateConfirming              CollectState = "confirming"
	StateSubmitting              CollectState = "submitting"
	StateAwaitingWalletSignature CollectState = "awaiting_wallet_signature"
	StateConfirmed               CollectState = "confirmed"
	StateFailed                  CollectState = "failed"
)

// Collector runs the collect flow for one account. The flow is strictly
// linear: precondition checks, protocol mutation, optional chain switch
// and wallet signature, confirmation wait. The Collecting flag is the
// only admission control; callers are expected to disable their trigger
// while it is set rather than rely on server-side de-duplication.
type Collector struct {
	client lens.SessionClient
	wallet wallet.Wallet

	// requiredChainID is the protocol's home chain, used when the
	// mutation result does not name one.
	requiredChainID int64

	// settleDelay is how long to wait after a successful network switch
	// before resubmitting. Wallet providers may report the old chain id
	// for a brief window after switching.
	settleDelay time.Duration

	mu         sync.Mutex
	state      CollectState
	collecting bool
}

// NewCollector creates a collect orchestrator for one account session.
// wallet may be nil when no bridge is connected; the flow then fails with
// ErrWalletUnavailable if a signature turns out to be required.
func NewCollector(client lens.SessionClient, w wallet.Wallet, requiredChainID int64) *Collector {
	return &Collector{
		client:          client,
		wallet:          w,
		requiredChainID: requiredChainID,
		settleDelay:     time.Second,
		state:           StateIdle,
	}
}

// State returns the orchestrator's current state.
func (c *Collector) State() CollectState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Collecting reports whether a collect flow is in flight.
func (c *Collector) Collecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collecting
}

func (c *Collector) setState(s CollectState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// CheckPreconditions runs the fail-fast checks that must all pass before
// any network mutation is issued. Each failure carries its own
// user-facing reason.
func (c *Collector) CheckPreconditions(post *models.Post, now time.Time) error {
	if post.IsRepost {
		return &ValidationError{Reason: "Cannot collect a repost publication"}
	}

	details := post.CollectDetails
	if details == nil {
		return &ValidationError{Reason: "Post does not have collect enabled"}
	}

	if post.Reactions.IsCollected {
		return &ValidationError{Reason: "You have already collected this post"}
	}

	if details.CollectLimit > 0 && post.Reactions.Collects >= details.CollectLimit {
		return &ValidationError{Reason: "Collect limit reached"}
	}

	if details.EndsAt != nil && details.EndsAt.Before(now) {
		return &ValidationError{Reason: "Collect period has ended"}
	}

	return nil
}

// Outcome is the terminal result of a successful collect flow.
type Outcome struct {
	// TxHash is the finalized transaction hash.
	TxHash string
	// Gasless is set when the protocol executed the collect without a
	// wallet signature.
	Gasless bool
}

// Collect runs the whole flow for the given post. It returns only after
// the protocol has observed the transaction finalized; success must not
// be surfaced to the user before then.
func (c *Collector) Collect(ctx context.Context, post *models.Post) (outcome *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "collect")
	defer span.End()

	c.mu.Lock()
	c.collecting = true
	c.state = StateConfirming
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.collecting = false
		if err != nil {
			c.state = StateFailed
		}
		c.mu.Unlock()
	}()

	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	if err := c.CheckPreconditions(post, time.Now()); err != nil {
		return nil, err
	}

	c.setState(StateSubmitting)

	result, err := c.submit(ctx, post)
	if err != nil {
		return nil, err
	}

	if !result.NeedsSignature() {
		// Executed gasless; just wait for the indexer.
		if err := c.client.WaitForTransaction(ctx, result.TxHash); err != nil {
			return nil, &UpstreamError{Op: "waitForTransaction", Err: err}
		}
		c.setState(StateConfirmed)
		return &Outcome{TxHash: result.TxHash, Gasless: true}, nil
	}

	if c.wallet == nil {
		return nil, ErrWalletUnavailable
	}

	c.setState(StateAwaitingWalletSignature)

	result, err = c.ensureChain(ctx, post, result)
	if err != nil {
		return nil, err
	}

	if !result.NeedsSignature() {
		// The resubmission after switching went through gasless after
		// all; nothing to sign.
		if err := c.client.WaitForTransaction(ctx, result.TxHash); err != nil {
			return nil, &UpstreamError{Op: "waitForTransaction", Err: err}
		}
		c.setState(StateConfirmed)
		return &Outcome{TxHash: result.TxHash, Gasless: true}, nil
	}

	txHash, err := c.wallet.SubmitOperation(ctx, result.Raw)
	if err != nil {
		return nil, &UpstreamError{Op: "submitOperation", Err: err}
	}

	if err := c.client.WaitForTransaction(ctx, txHash); err != nil {
		return nil, &UpstreamError{Op: "waitForTransaction", Err: err}
	}

	c.setState(StateConfirmed)
	return &Outcome{TxHash: txHash}, nil
}

func (c *Collector) submit(ctx context.Context, post *models.Post) (*lens.ActionResult, error) {
	result, err := c.client.ExecutePostAction(ctx, lens.ExecutePostActionRequest{
		Post:          post.LensID,
		SimpleCollect: true,
	})
	if err != nil {
		return nil, classifyUpstreamError("executePostAction", err)
	}
	return result, nil
}

// ensureChain makes sure the wallet is on the chain the operation needs,
// switching networks if necessary. After a successful switch the mutation
// is resubmitted, since the original operation descriptor may be stale
// and providers can briefly report the old chain id.
func (c *Collector) ensureChain(ctx context.Context, post *models.Post, result *lens.ActionResult) (*lens.ActionResult, error) {
	required := result.ChainID
	if required == 0 {
		required = c.requiredChainID
	}

	active, err := c.wallet.ChainID(ctx)
	if err != nil {
		return nil, &UpstreamError{Op: "chainId", Err: err}
	}
	if active == required {
		return result, nil
	}

	slog.Info("switching wallet network", "from", active, "to", required)

	if err := c.wallet.SwitchChain(ctx, required); err != nil {
		switch err {
		case wallet.ErrRejected:
			return nil, ErrChainSwitchRejected
		case wallet.ErrUnrecognizedChain:
			return nil, ErrChainNotRegistered
		}
		return nil, &UpstreamError{Op: "switchChain", Err: err}
	}

	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.submit(ctx, post)
}
