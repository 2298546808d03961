package poolstore

import "github.com/pkg/errors"

var (
	// ErrPoolExhausted is returned by TryAssign when every block is taken.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrStoreUnavailable is returned when the durable backend kept failing
	// after the configured retries. The in-memory table is left untouched.
	ErrStoreUnavailable = errors.New("store unavailable")
)
