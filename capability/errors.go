package capability

import "strings"

// ValidationError reports input that violates an operation's argument
// contract: oversized keys, self-transfers, over-large batch queries. It is
// always reported to the caller and never mutates state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// LimitError reports that a store or gas ceiling would be exceeded. The
// operation that raised it has rolled back any pending work.
type LimitError struct {
	Msg string
}

func (e *LimitError) Error() string { return e.Msg }

// BlockedDomainError reports a fetch to a hostname outside the allowlist.
// The message text is part of the observable contract.
type BlockedDomainError struct {
	Host    string
	Allowed []string
}

func (e *BlockedDomainError) Error() string {
	return "fetch blocked: domain \"" + e.Host + "\" not in whitelist. Allowed domains: " +
		strings.Join(e.Allowed, ", ")
}

// TransportError reports a fetch that passed the allowlist but failed in
// transit or while reading the response.
type TransportError struct {
	Msg string
}

func (e *TransportError) Error() string { return e.Msg }
