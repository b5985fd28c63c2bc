package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/retry"
)

// TxInfo describes one confirmed transaction touching the agent's wallet.
type TxInfo struct {
	Signature string `json:"signature"`
	Memo      string `json:"memo"`
	BlockTime int64  `json:"blockTime"`
	Err       any    `json:"err"`
}

// Client is a JSON-RPC 2.0 consumer of the public ledger: balance and
// history reads, the memo-write primitive, and signature lookups.
type Client struct {
	rpcURL     string
	wallet     string
	httpClient *http.Client

	// ConfirmPolicy bounds the post-submit confirmation polling.
	ConfirmPolicy retry.Policy
}

// NewClient creates a ledger client for the given RPC endpoint and wallet.
func NewClient(rpcURL, wallet string) *Client {
	return &Client{
		rpcURL: rpcURL,
		wallet: wallet,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ConfirmPolicy: retry.Policy{
			MaxAttempts: 10,
			Delay:       2 * time.Second,
			Retryable: func(err error) bool {
				return err == errUnconfirmed
			},
		},
	}
}

var errUnconfirmed = domain.NewAgentError(domain.ErrLedgerTimeout.Code, "transaction not yet confirmed")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code, "read rpc response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code,
			fmt.Sprintf("%s status %d", method, resp.StatusCode), nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code, "decode rpc response", err)
	}
	if rpcResp.Error != nil {
		return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code,
			fmt.Sprintf("%s rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message), nil)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return domain.WrapAgentError(domain.ErrLedgerUnavailable.Code, "decode rpc result", err)
		}
	}
	return nil
}

// Balance returns the wallet balance in the ledger's base unit.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{c.wallet}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// Signatures returns up to limit transactions for the wallet, newest first.
// Pass before to page backwards through history.
func (c *Client) Signatures(ctx context.Context, limit int, before string) ([]TxInfo, error) {
	opts := map[string]any{"limit": limit}
	if before != "" {
		opts["before"] = before
	}
	var txs []TxInfo
	if err := c.call(ctx, "getSignaturesForAddress", []any{c.wallet, opts}, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Transaction looks up a single transaction by signature.
func (c *Client) Transaction(ctx context.Context, signature string) (*TxInfo, error) {
	var tx TxInfo
	if err := c.call(ctx, "getTransaction", []any{signature}, &tx); err != nil {
		return nil, err
	}
	if tx.Signature == "" {
		return nil, domain.ErrLedgerUnavailable
	}
	return &tx, nil
}

// SendMemo submits a memo payload attached to a minimal transaction and
// waits for network confirmation. Returns the confirmed signature.
func (c *Client) SendMemo(ctx context.Context, memo string) (string, error) {
	if len(memo) > MaxPayloadBytes {
		return "", domain.ErrPayloadTooLarge
	}

	var signature string
	if err := c.call(ctx, "sendMemo", []any{c.wallet, memo}, &signature); err != nil {
		return "", err
	}

	// Confirmation is required before the write counts as succeeded.
	err := c.ConfirmPolicy.Do(ctx, func(ctx context.Context) error {
		return c.checkConfirmed(ctx, signature)
	})
	if err != nil {
		return "", domain.WrapAgentError(domain.ErrLedgerTimeout.Code, "await confirmation", err)
	}
	return signature, nil
}

func (c *Client) checkConfirmed(ctx context.Context, signature string) error {
	var result struct {
		Value []*struct {
			ConfirmationStatus string `json:"confirmationStatus"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result); err != nil {
		return err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return errUnconfirmed
	}
	switch result.Value[0].ConfirmationStatus {
	case "confirmed", "finalized":
		return nil
	default:
		return errUnconfirmed
	}
}
