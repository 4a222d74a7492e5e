package chat

import "errors"

// Error taxonomy for the chat pipeline. Store operations wrap these with
// operation context via github.com/pkg/errors; callers test with errors.Is.
var (
	// ErrNotFound reports a delete/update/read target that does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrStoreUnavailable reports that persistence is unreachable. Not
	// retried internally.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedRecord reports a stored payload that fails to parse,
	// which signals data corruption.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrGenerationFailed reports a failed or timed-out primary generation
	// call. Fatal to the current stream; nothing is persisted.
	ErrGenerationFailed = errors.New("generation failed")
)
