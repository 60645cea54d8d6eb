package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Mock block context. Real values come from the blockchain DB in production.
const (
	MockBlockHeight uint64 = 12345
	MockExecutor           = "user_edge_server"
	MockContractID         = "contract_edge"
)

// MaxBatchQuery caps ids per balance/user/transaction query.
const MaxBatchQuery = 10

const DefaultLedgerURL = "http://localhost:8080"

// Chain exposes the per-invocation block context and batch queries against the
// ledger API. The context values are immutable for the process lifetime except
// the timestamp, which is live.
type Chain struct {
	ledgerURL string
	client    *http.Client
}

func NewChain(ledgerURL string) *Chain {
	if ledgerURL == "" {
		ledgerURL = DefaultLedgerURL
	}
	return &Chain{
		ledgerURL: ledgerURL,
		client:    &http.Client{Timeout: DefaultFetchTimeout},
	}
}

func (c *Chain) Height() uint64 { return MockBlockHeight }

// Timestamp returns the current time in milliseconds since the epoch.
func (c *Chain) Timestamp() float64 {
	return float64(time.Now().UnixMilli())
}

func (c *Chain) Hash() string         { return fmt.Sprintf("0x%x", MockBlockHeight) }
func (c *Chain) PreviousHash() string { return fmt.Sprintf("0x%x", MockBlockHeight-1) }
func (c *Chain) Executor() string     { return MockExecutor }
func (c *Chain) ContractID() string   { return MockContractID }
func (c *Chain) GasLimit() uint64     { return GasLimit }

type balanceRecord struct {
	OwnerID      string `json:"ownerId"`
	CurrencyCode string `json:"currencyCode"`
	Amount       string `json:"amount"`
}

// Balances resolves each id to its balance in the given currency, defaulting
// to zero when the ledger has no matching record. Results are in input order.
func (c *Chain) Balances(ctx context.Context, ids []string, currency string) ([]float64, error) {
	if len(ids) > MaxBatchQuery {
		return nil, &ValidationError{fmt.Sprintf("Cannot query more than %d balances at once", MaxBatchQuery)}
	}

	var records []balanceRecord
	if err := c.fetchJSON(ctx, "/balances", "balances", &records); err != nil {
		return nil, err
	}

	out := make([]float64, len(ids))
	for i, id := range ids {
		for _, rec := range records {
			if rec.OwnerID == id && rec.CurrencyCode == currency {
				if v, err := strconv.ParseFloat(rec.Amount, 64); err == nil {
					out[i] = v
				}
				break
			}
		}
	}
	return out, nil
}

// Users resolves each id (user id or username) to the ledger's user object, or
// nil when unknown. Results are in input order.
func (c *Chain) Users(ctx context.Context, ids []string) ([]any, error) {
	if len(ids) > MaxBatchQuery {
		return nil, &ValidationError{fmt.Sprintf("Cannot query more than %d users at once", MaxBatchQuery)}
	}

	var records []map[string]any
	if err := c.fetchJSON(ctx, "/users", "users", &records); err != nil {
		return nil, err
	}

	out := make([]any, len(ids))
	for i, id := range ids {
		for _, rec := range records {
			if rec["id"] == id || rec["username"] == id {
				out[i] = rec
				break
			}
		}
	}
	return out, nil
}

// Transactions resolves each transaction id, or nil when unknown.
func (c *Chain) Transactions(ctx context.Context, ids []string) ([]any, error) {
	if len(ids) > MaxBatchQuery {
		return nil, &ValidationError{fmt.Sprintf("Cannot query more than %d transactions at once", MaxBatchQuery)}
	}

	var records []map[string]any
	if err := c.fetchJSON(ctx, "/transactions", "transactions", &records); err != nil {
		return nil, err
	}

	out := make([]any, len(ids))
	for i, id := range ids {
		for _, rec := range records {
			if rec["id"] == id {
				out[i] = rec
				break
			}
		}
	}
	return out, nil
}

func (c *Chain) fetchJSON(ctx context.Context, path, kind string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ledgerURL+path, nil)
	if err != nil {
		return &TransportError{fmt.Sprintf("Failed to fetch %s: %v", kind, err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{fmt.Sprintf("Failed to fetch %s: %v", kind, err)}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return &TransportError{fmt.Sprintf("Failed to parse %s: %v", kind, err)}
	}
	return nil
}
