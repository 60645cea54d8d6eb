package capability

import "sync"

// Gas constants. Executing a batch costs GasCostPerChange per queued change;
// the cumulative counter never passes GasLimit.
const (
	GasLimit         uint64 = 1_000_000
	GasCostPerChange uint64 = 100
)

// Change tag values.
const (
	ChangeTransfer      = "transfer"
	ChangeBalanceUpdate = "balance_update"
)

// Change is one staged state-change intent. Type selects which of the
// remaining fields are meaningful: a transfer carries From/To, a balance
// update carries UserID.
type Change struct {
	Type     string  `json:"type"`
	From     string  `json:"from,omitempty"`
	To       string  `json:"to,omitempty"`
	UserID   string  `json:"userId,omitempty"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Receipt is the result of executing a pending batch. The error key is
// always serialized, empty on success, so guests can probe for it.
type Receipt struct {
	Success bool     `json:"success"`
	Changes []Change `json:"changes"`
	GasUsed uint64   `json:"gasUsed"`
	Error   string   `json:"error"`
}

// Ledger accumulates state-change intents until Execute applies or discards
// them as one batch. The pending queue and the cumulative gas counter are
// guarded separately: the counter is also read by the block-context accessors
// while a batch is being staged.
type Ledger struct {
	mu      sync.Mutex
	pending []Change

	gasMu   sync.Mutex
	gasUsed uint64
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Transfer stages a transfer between two distinct users.
func (l *Ledger) Transfer(from, to string, amount float64, currency string) error {
	if from == to {
		return &ValidationError{"Cannot transfer to self"}
	}
	if amount <= 0 {
		return &ValidationError{"Amount must be positive"}
	}

	l.mu.Lock()
	l.pending = append(l.pending, Change{
		Type:     ChangeTransfer,
		From:     from,
		To:       to,
		Amount:   amount,
		Currency: currency,
	})
	l.mu.Unlock()
	return nil
}

// SetBalance stages an absolute balance update.
func (l *Ledger) SetBalance(userID string, amount float64, currency string) error {
	if amount < 0 {
		return &ValidationError{"Balance cannot be negative"}
	}

	l.mu.Lock()
	l.pending = append(l.pending, Change{
		Type:     ChangeBalanceUpdate,
		UserID:   userID,
		Amount:   amount,
		Currency: currency,
	})
	l.mu.Unlock()
	return nil
}

// Changes returns a snapshot of the pending queue.
func (l *Ledger) Changes() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Change, len(l.pending))
	copy(out, l.pending)
	return out
}

// GasUsed returns the cumulative gas spent by successful executions.
func (l *Ledger) GasUsed() uint64 {
	l.gasMu.Lock()
	defer l.gasMu.Unlock()
	return l.gasUsed
}

// Execute is the atomic boundary: the whole pending batch either commits its
// gas cost and is returned, or is discarded without touching the counter.
// The queue is empty afterwards either way; on failure the caller must
// re-stage.
func (l *Ledger) Execute() Receipt {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if batch == nil {
		batch = []Change{}
	}
	cost := GasCostPerChange * uint64(len(batch))

	l.gasMu.Lock()
	defer l.gasMu.Unlock()

	if l.gasUsed+cost > GasLimit {
		return Receipt{
			Success: false,
			Changes: []Change{},
			GasUsed: GasLimit,
			Error:   "Out of gas",
		}
	}

	l.gasUsed += cost
	return Receipt{
		Success: true,
		Changes: batch,
		GasUsed: cost,
	}
}
