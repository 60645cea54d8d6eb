package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Services is the host-side state one process shares across invocations.
// Store, Ledger, Gateway and Chain are each individually atomic; there is no
// combined transaction across them.
type Services struct {
	Store   *Store
	Ledger  *Ledger
	Gateway *Gateway
	Chain   *Chain

	// Stdout and Stderr receive guest console output. Defaults: os.Stdout,
	// os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Bind registers the full capability surface on r. The resulting op set is
// closed: guest code can reach exactly these names and nothing else.
func Bind(r *Registry, s Services) {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}

	r.Register("print", func(ctx context.Context, args map[string]any) (any, error) {
		msg, _ := args["msg"].(string)
		fmt.Fprint(s.Stdout, msg)
		return nil, nil
	})
	r.Register("print_err", func(ctx context.Context, args map[string]any) (any, error) {
		msg, _ := args["msg"].(string)
		fmt.Fprint(s.Stderr, msg)
		return nil, nil
	})
	r.Register("sum", func(ctx context.Context, args map[string]any) (any, error) {
		nums, ok := args["nums"].([]any)
		if !ok {
			return nil, errors.New("nums required")
		}
		total := 0.0
		for _, n := range nums {
			f, ok := n.(float64)
			if !ok {
				return nil, errors.New("nums must be numbers")
			}
			total += f
		}
		return total, nil
	})

	r.Register("fetch", func(ctx context.Context, args map[string]any) (any, error) {
		rawURL, ok := args["url"].(string)
		if !ok {
			return nil, errors.New("url required")
		}
		return s.Gateway.Fetch(ctx, rawURL)
	})

	bindStore(r, s.Store)
	bindChain(r, s.Chain, s.Ledger)
	bindLedger(r, s.Ledger)
}

func bindStore(r *Registry, store *Store) {
	r.Register("data_set", func(ctx context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		value, err := stringArg(args, "value")
		if err != nil {
			return nil, err
		}
		return nil, store.Set(key, value)
	})
	r.Register("data_get", func(ctx context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		value, ok := store.Get(key)
		if !ok {
			return nil, nil
		}
		return value, nil
	})
	r.Register("data_delete", func(ctx context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		store.Delete(key)
		return nil, nil
	})
	r.Register("data_has", func(ctx context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		return store.Has(key), nil
	})
	r.Register("data_keys", func(ctx context.Context, args map[string]any) (any, error) {
		pattern, _ := args["pattern"].(string)
		return store.Keys(pattern)
	})
	r.Register("data_clear", func(ctx context.Context, args map[string]any) (any, error) {
		store.Clear()
		return nil, nil
	})
	r.Register("data_commit", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, store.Commit()
	})
}

func bindChain(r *Registry, chain *Chain, ledger *Ledger) {
	r.Register("block_height", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.Height(), nil
	})
	r.Register("block_timestamp", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.Timestamp(), nil
	})
	r.Register("block_hash", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.Hash(), nil
	})
	r.Register("block_previous_hash", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.PreviousHash(), nil
	})
	r.Register("block_executor", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.Executor(), nil
	})
	r.Register("block_contract_id", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.ContractID(), nil
	})
	r.Register("block_gas_limit", func(ctx context.Context, args map[string]any) (any, error) {
		return chain.GasLimit(), nil
	})
	// Gas used is live: it reads the same counter tx_execute advances.
	r.Register("block_gas_used", func(ctx context.Context, args map[string]any) (any, error) {
		return ledger.GasUsed(), nil
	})

	r.Register("block_get_balance", func(ctx context.Context, args map[string]any) (any, error) {
		ids, single, err := batchIDs(args["ids"], "Invalid user_ids")
		if err != nil {
			return nil, err
		}
		currency, _ := args["currency"].(string)
		balances, err := chain.Balances(ctx, ids, currency)
		if err != nil {
			return nil, err
		}
		if single {
			return balances[0], nil
		}
		return balances, nil
	})
	r.Register("block_get_user", func(ctx context.Context, args map[string]any) (any, error) {
		ids, single, err := batchIDs(args["ids"], "Invalid user_ids")
		if err != nil {
			return nil, err
		}
		users, err := chain.Users(ctx, ids)
		if err != nil {
			return nil, err
		}
		if single {
			return users[0], nil
		}
		return users, nil
	})
	r.Register("block_get_transaction", func(ctx context.Context, args map[string]any) (any, error) {
		ids, single, err := batchIDs(args["ids"], "Invalid tx_ids")
		if err != nil {
			return nil, err
		}
		txs, err := chain.Transactions(ctx, ids)
		if err != nil {
			return nil, err
		}
		if single {
			return txs[0], nil
		}
		return txs, nil
	})
}

func bindLedger(r *Registry, ledger *Ledger) {
	r.Register("tx_transfer", func(ctx context.Context, args map[string]any) (any, error) {
		from, err := stringArg(args, "from")
		if err != nil {
			return nil, err
		}
		to, err := stringArg(args, "to")
		if err != nil {
			return nil, err
		}
		amount, ok := args["amount"].(float64)
		if !ok {
			return nil, errors.New("amount required")
		}
		currency, _ := args["currency"].(string)
		return nil, ledger.Transfer(from, to, amount, currency)
	})
	r.Register("tx_set_balance", func(ctx context.Context, args map[string]any) (any, error) {
		userID, err := stringArg(args, "userId")
		if err != nil {
			return nil, err
		}
		amount, ok := args["amount"].(float64)
		if !ok {
			return nil, errors.New("amount required")
		}
		currency, _ := args["currency"].(string)
		return nil, ledger.SetBalance(userID, amount, currency)
	})
	r.Register("tx_get_changes", func(ctx context.Context, args map[string]any) (any, error) {
		return ledger.Changes(), nil
	})
	r.Register("tx_execute", func(ctx context.Context, args map[string]any) (any, error) {
		return ledger.Execute(), nil
	})
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", errors.New(name + " required")
	}
	return v, nil
}

// batchIDs accepts a single id or a sequence of ids; single reports which, so
// the result can mirror the input shape.
func batchIDs(v any, invalidMsg string) (ids []string, single bool, err error) {
	switch t := v.(type) {
	case string:
		return []string{t}, true, nil
	case []any:
		ids = make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids, false, nil
	default:
		return nil, false, &ValidationError{invalidMsg}
	}
}
