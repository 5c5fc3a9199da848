// Package wallet connects the server-side action orchestrator to the
// user's browser wallet over a websocket bridge. The browser opens the
// bridge socket after connecting its wallet; the orchestrator then sends
// requests (chain id, chain switch, operation submission) and waits for
// the matching response.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrRejected means the user declined the wallet request (EIP-1193
	// code 4001).
	ErrRejected = errors.New("wallet request rejected by user")

	// ErrUnrecognizedChain means the wallet does not know the requested
	// chain (EIP-3085 code 4902).
	ErrUnrecognizedChain = errors.New("chain not registered in wallet")

	// ErrNotConnected means no bridge socket is open for the account.
	ErrNotConnected = errors.New("wallet bridge not connected")
)

const (
	codeUserRejected      = 4001
	codeUnrecognizedChain = 4902
)

// Wallet is the orchestrator's view of the connected wallet.
type Wallet interface {
	// ChainID returns the wallet's active chain id.
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain asks the wallet to switch to the given chain.
	SwitchChain(ctx context.Context, chainID int64) error
	// SubmitOperation asks the wallet to sign and submit an
	// orchestrator-issued operation descriptor, returning the tx hash.
	SubmitOperation(ctx context.Context, op json.RawMessage) (string, error)
}

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *respError      `json:"error,omitempty"`
}

type respError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Bridge is one browser wallet connection. A Bridge belongs to exactly one
// authenticated account; requests are serialized over the socket and
// matched to responses by id.
type Bridge struct {
	conn *websocket.Conn

	writeLk sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	closed  chan struct{}
	err     error
}

var _ Wallet = (*Bridge)(nil)

// NewBridge wraps an accepted websocket connection and starts its read
// loop.
func NewBridge(conn *websocket.Conn) *Bridge {
	b := &Bridge{
		conn:    conn,
		pending: make(map[uint64]chan response),
		closed:  make(chan struct{}),
	}
	go b.readLoop()
	return b
}

func (b *Bridge) readLoop() {
	for {
		var resp response
		if err := b.conn.ReadJSON(&resp); err != nil {
			b.mu.Lock()
			b.err = err
			close(b.closed)
			for id, ch := range b.pending {
				delete(b.pending, id)
				close(ch)
			}
			b.mu.Unlock()
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// Closed reports whether the bridge socket has gone away.
func (b *Bridge) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Close tears down the bridge socket.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

func (b *Bridge) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if b.Closed() {
		return nil, ErrNotConnected
	}

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		rawParams = data
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan response, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	b.writeLk.Lock()
	err := b.conn.WriteJSON(request{ID: id, Method: method, Params: rawParams})
	b.writeLk.Unlock()
	if err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return nil, fmt.Errorf("failed to send wallet request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != nil {
			return nil, walletError(resp.Error)
		}
		return resp.Result, nil
	case <-b.closed:
		return nil, ErrNotConnected
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return nil, ctx.Err()
	}
}

func walletError(e *respError) error {
	switch e.Code {
	case codeUserRejected:
		return ErrRejected
	case codeUnrecognizedChain:
		return ErrUnrecognizedChain
	}
	return fmt.Errorf("wallet error %d: %s", e.Code, e.Message)
}

func (b *Bridge) ChainID(ctx context.Context) (int64, error) {
	raw, err := b.call(ctx, "eth_chainId", nil)
	if err != nil {
		return 0, err
	}
	var chainID int64
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return 0, fmt.Errorf("failed to decode chain id: %w", err)
	}
	return chainID, nil
}

func (b *Bridge) SwitchChain(ctx context.Context, chainID int64) error {
	_, err := b.call(ctx, "wallet_switchEthereumChain", map[string]int64{"chainId": chainID})
	return err
}

func (b *Bridge) SubmitOperation(ctx context.Context, op json.RawMessage) (string, error) {
	raw, err := b.call(ctx, "box_submitOperation", op)
	if err != nil {
		return "", err
	}
	var out struct {
		TxHash string `json:"txHash"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("wallet returned no transaction hash")
	}
	return out.TxHash, nil
}

// Registry tracks the active bridge per account. Accounts have at most one
// bridge; a newly opened socket replaces the previous one.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// Attach registers a bridge for the account, closing any previous one.
func (r *Registry) Attach(account string, b *Bridge) {
	r.mu.Lock()
	prev := r.bridges[account]
	r.bridges[account] = b
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Get returns the account's bridge, or nil when none is connected.
func (r *Registry) Get(account string) *Bridge {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bridges[account]
	if b != nil && b.Closed() {
		delete(r.bridges, account)
		return nil
	}
	return b
}
