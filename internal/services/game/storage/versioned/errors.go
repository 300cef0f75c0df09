package versioned

import apperrors "github.com/louisbranch/gamestate/internal/platform/errors"

// Store error sentinels. They match wrapped failures by code through errors.Is.
var (
	// ErrConnection indicates the backing store could not be opened or reached.
	ErrConnection = apperrors.New(apperrors.CodeStoreUnavailable, "store unavailable")
	// ErrTransaction indicates a begin, commit or statement failure.
	ErrTransaction = apperrors.New(apperrors.CodeStoreTransactionFailed, "store transaction failed")
	// ErrSerialization indicates a value could not be encoded or decoded.
	ErrSerialization = apperrors.New(apperrors.CodeStoreSerializationFailed, "store serialization failed")
	// ErrTimeout indicates a connection or lock was not acquired in time.
	ErrTimeout = apperrors.New(apperrors.CodeStoreTimeout, "store timeout")
	// ErrUnsupportedOperation indicates a write or bump on a read-only query.
	ErrUnsupportedOperation = apperrors.New(apperrors.CodeStoreUnsupportedOperation, "operation not supported by read-only query")
	// ErrInvalidQuery indicates a malformed query or a misuse of Results.
	ErrInvalidQuery = apperrors.New(apperrors.CodeStoreInvalidQuery, "invalid query")
)

func keyMetadata(key Key) map[string]string {
	return map[string]string{"type": key.Type, "id": key.ID}
}
