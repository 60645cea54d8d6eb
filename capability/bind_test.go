package capability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundRegistry(t *testing.T) (*Registry, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	r := NewRegistry()
	Bind(r, Services{
		Store:   NewStore(),
		Ledger:  NewLedger(),
		Gateway: NewGateway(GatewayConfig{}),
		Chain:   NewChain(ledgerStub(t).URL),
		Stdout:  &stdout,
		Stderr:  &stdout,
	})
	return r, &stdout
}

func call(t *testing.T, r *Registry, name string, args map[string]any) (any, error) {
	t.Helper()
	fn, ok := r.Get(name)
	require.True(t, ok, "operation %q must be registered", name)
	return fn(context.Background(), args)
}

func TestBindClosedOpSet(t *testing.T) {
	r, _ := boundRegistry(t)

	assert.Equal(t, []string{
		"block_contract_id",
		"block_executor",
		"block_gas_limit",
		"block_gas_used",
		"block_get_balance",
		"block_get_transaction",
		"block_get_user",
		"block_hash",
		"block_height",
		"block_previous_hash",
		"block_timestamp",
		"data_clear",
		"data_commit",
		"data_delete",
		"data_get",
		"data_has",
		"data_keys",
		"data_set",
		"fetch",
		"print",
		"print_err",
		"sum",
		"tx_execute",
		"tx_get_changes",
		"tx_set_balance",
		"tx_transfer",
	}, r.List())
}

func TestBindPrint(t *testing.T) {
	r, out := boundRegistry(t)

	_, err := call(t, r, "print", map[string]any{"msg": "hello\n"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestBindSum(t *testing.T) {
	r, _ := boundRegistry(t)

	got, err := call(t, r, "sum", map[string]any{"nums": []any{1.0, 2.0, 3.5}})
	require.NoError(t, err)
	assert.Equal(t, 6.5, got)

	_, err = call(t, r, "sum", map[string]any{"nums": []any{"nope"}})
	require.Error(t, err)
}

func TestBindDataOps(t *testing.T) {
	r, _ := boundRegistry(t)

	_, err := call(t, r, "data_set", map[string]any{"key": "k", "value": "v"})
	require.NoError(t, err)

	got, err := call(t, r, "data_get", map[string]any{"key": "k"})
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	got, err = call(t, r, "data_has", map[string]any{"key": "k"})
	require.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = call(t, r, "data_commit", nil)
	require.NoError(t, err)

	got, err = call(t, r, "data_keys", map[string]any{"pattern": "*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, got)

	_, err = call(t, r, "data_delete", map[string]any{"key": "k"})
	require.NoError(t, err)
	got, err = call(t, r, "data_get", map[string]any{"key": "k"})
	require.NoError(t, err)
	assert.Nil(t, got, "missing value resolves to nil, not an error")

	_, err = call(t, r, "data_set", map[string]any{"key": "k"})
	require.Error(t, err, "value required")
}

func TestBindBatchShapeMirrorsInput(t *testing.T) {
	r, _ := boundRegistry(t)

	// Single id in, single object out.
	got, err := call(t, r, "block_get_user", map[string]any{"ids": "alice"})
	require.NoError(t, err)
	user, ok := got.(map[string]any)
	require.True(t, ok, "single query returns the object itself")
	assert.Equal(t, "u1", user["id"])

	got, err = call(t, r, "block_get_user", map[string]any{"ids": "ghost"})
	require.NoError(t, err)
	assert.Nil(t, got, "single unknown user is null, not a one-element list")

	// List in, list out, input order.
	got, err = call(t, r, "block_get_user", map[string]any{"ids": []any{"ghost", "alice"}})
	require.NoError(t, err)
	users, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, users, 2)
	assert.Nil(t, users[0])
	assert.NotNil(t, users[1])

	_, err = call(t, r, "block_get_user", map[string]any{"ids": 42.0})
	require.Error(t, err)
	assert.Equal(t, "Invalid user_ids", err.Error())
}

func TestBindBalanceQuery(t *testing.T) {
	r, _ := boundRegistry(t)

	got, err := call(t, r, "block_get_balance", map[string]any{"ids": "alice", "currency": "USD"})
	require.NoError(t, err)
	assert.Equal(t, 42.5, got)

	got, err = call(t, r, "block_get_balance", map[string]any{"ids": []any{"alice", "bob"}, "currency": "USD"})
	require.NoError(t, err)
	assert.Equal(t, []float64{42.5, 0}, got)
}

func TestBindLedgerOps(t *testing.T) {
	r, _ := boundRegistry(t)

	_, err := call(t, r, "tx_transfer", map[string]any{
		"from": "alice", "to": "bob", "amount": 10.0, "currency": "USD",
	})
	require.NoError(t, err)
	_, err = call(t, r, "tx_set_balance", map[string]any{
		"userId": "carol", "amount": 5.0, "currency": "USD",
	})
	require.NoError(t, err)

	got, err := call(t, r, "tx_get_changes", nil)
	require.NoError(t, err)
	changes, ok := got.([]Change)
	require.True(t, ok)
	assert.Len(t, changes, 2)

	got, err = call(t, r, "tx_execute", nil)
	require.NoError(t, err)
	receipt, ok := got.(Receipt)
	require.True(t, ok)
	assert.True(t, receipt.Success)
	assert.Equal(t, 2*GasCostPerChange, receipt.GasUsed)

	// Gas accounting is visible through the block context.
	got, err = call(t, r, "block_gas_used", nil)
	require.NoError(t, err)
	assert.Equal(t, 2*GasCostPerChange, got)
}

func TestBindFetchBlocked(t *testing.T) {
	r, _ := boundRegistry(t)

	_, err := call(t, r, "fetch", map[string]any{"url": "https://evil.example.com/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in whitelist")
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}
