package capability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerTransferValidation(t *testing.T) {
	l := NewLedger()

	err := l.Transfer("alice", "alice", 10, "USD")
	require.Error(t, err)
	assert.Equal(t, "Cannot transfer to self", err.Error())

	err = l.Transfer("alice", "bob", 0, "USD")
	require.Error(t, err)
	assert.Equal(t, "Amount must be positive", err.Error())

	err = l.Transfer("alice", "bob", -5, "USD")
	require.Error(t, err)
	assert.Equal(t, "Amount must be positive", err.Error())

	// Rejected intents never reach the queue.
	assert.Empty(t, l.Changes())
}

func TestLedgerSetBalanceValidation(t *testing.T) {
	l := NewLedger()

	err := l.SetBalance("alice", -1, "USD")
	require.Error(t, err)
	assert.Equal(t, "Balance cannot be negative", err.Error())

	require.NoError(t, l.SetBalance("alice", 0, "USD"))
	require.NoError(t, l.SetBalance("alice", 42.5, "USD"))
	assert.Len(t, l.Changes(), 2)
}

func TestLedgerChangesSnapshot(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Transfer("alice", "bob", 10, "USD"))

	snap := l.Changes()
	require.Len(t, snap, 1)
	snap[0].Amount = 999

	assert.Equal(t, float64(10), l.Changes()[0].Amount)
}

func TestLedgerExecute(t *testing.T) {
	l := NewLedger()

	require.NoError(t, l.Transfer("alice", "bob", 10, "USD"))
	require.NoError(t, l.Transfer("bob", "carol", 5, "USD"))
	require.NoError(t, l.SetBalance("dave", 100, "USD"))

	receipt := l.Execute()
	assert.True(t, receipt.Success)
	assert.Empty(t, receipt.Error)
	assert.Equal(t, 3*GasCostPerChange, receipt.GasUsed)
	require.Len(t, receipt.Changes, 3)
	assert.Equal(t, ChangeTransfer, receipt.Changes[0].Type)
	assert.Equal(t, ChangeBalanceUpdate, receipt.Changes[2].Type)

	assert.Equal(t, 3*GasCostPerChange, l.GasUsed())
	assert.Empty(t, l.Changes(), "queue drains on execute")
}

func TestLedgerExecuteEmptyQueue(t *testing.T) {
	l := NewLedger()

	receipt := l.Execute()
	assert.True(t, receipt.Success)
	assert.NotNil(t, receipt.Changes)
	assert.Empty(t, receipt.Changes)
	assert.Equal(t, uint64(0), receipt.GasUsed)
	assert.Equal(t, uint64(0), l.GasUsed())
}

func TestLedgerReceiptJSONShape(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.SetBalance("u", 1, "USD"))

	data, err := json.Marshal(l.Execute())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"success", "changes", "gasUsed", "error"} {
		_, ok := m[key]
		assert.True(t, ok, "receipt must serialize the %q key", key)
	}
	assert.Equal(t, "", m["error"], "error key is present even on success")
}

func TestLedgerOutOfGas(t *testing.T) {
	l := NewLedger()

	// Spend 999900 gas in batches under the limit.
	for batch := 0; batch < 11; batch++ {
		n := 999
		if batch == 10 {
			n = 9
		}
		for i := 0; i < n; i++ {
			require.NoError(t, l.SetBalance("u", 1, "USD"))
		}
		receipt := l.Execute()
		require.True(t, receipt.Success)
	}
	require.Equal(t, uint64(999_900), l.GasUsed())

	// Two more changes would cost 200 and cross the limit: the whole batch
	// is discarded and the counter stays where it was.
	require.NoError(t, l.SetBalance("u", 1, "USD"))
	require.NoError(t, l.SetBalance("u", 2, "USD"))

	receipt := l.Execute()
	assert.False(t, receipt.Success)
	assert.Equal(t, "Out of gas", receipt.Error)
	assert.Empty(t, receipt.Changes)
	assert.Equal(t, GasLimit, receipt.GasUsed)

	assert.Equal(t, uint64(999_900), l.GasUsed(), "failed batch must not consume gas")
	assert.Empty(t, l.Changes(), "queue drains even on failure")

	// One change still fits.
	require.NoError(t, l.SetBalance("u", 3, "USD"))
	receipt = l.Execute()
	assert.True(t, receipt.Success)
	assert.Equal(t, GasLimit, l.GasUsed())
}
