// Package errors provides structured, coded errors shared by the store and the
// request handlers that sit above it.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Store errors
	CodeStoreUnavailable           Code = "STORE_UNAVAILABLE"
	CodeStoreTransactionFailed     Code = "STORE_TRANSACTION_FAILED"
	CodeStoreSerializationFailed   Code = "STORE_SERIALIZATION_FAILED"
	CodeStoreTimeout               Code = "STORE_TIMEOUT"
	CodeStoreUnsupportedOperation  Code = "STORE_UNSUPPORTED_OPERATION"
	CodeStoreInvalidQuery          Code = "STORE_INVALID_QUERY"
	CodeSchemaUnknown              Code = "SCHEMA_UNKNOWN"
	CodeSchemaUnknownVariant       Code = "SCHEMA_UNKNOWN_VARIANT"
	CodeProgressionInvalidGain     Code = "PROGRESSION_INVALID_GAIN"
	CodeProgressionInvalidPlayerID Code = "PROGRESSION_INVALID_PLAYER_ID"
	CodeProgressionRewardNotFound  Code = "PROGRESSION_REWARD_NOT_FOUND"
	CodeProgressionRewardClaimed   Code = "PROGRESSION_REWARD_CLAIMED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed input from the caller
	case CodeStoreInvalidQuery,
		CodeProgressionInvalidGain,
		CodeProgressionInvalidPlayerID:
		return codes.InvalidArgument

	// NotFound - the referenced object was never persisted
	case CodeProgressionRewardNotFound:
		return codes.NotFound

	// FailedPrecondition - the query shape or object state does not allow the operation
	case CodeStoreUnsupportedOperation,
		CodeProgressionRewardClaimed:
		return codes.FailedPrecondition

	// Unavailable - backing store cannot be reached; callers may retry
	case CodeStoreUnavailable:
		return codes.Unavailable

	// DeadlineExceeded - lock contention outlasted the busy timeout
	case CodeStoreTimeout:
		return codes.DeadlineExceeded

	default:
		return codes.Internal
	}
}

// Retryable reports whether a caller may reasonably retry the whole operation.
func (c Code) Retryable() bool {
	return c == CodeStoreTimeout || c == CodeStoreUnavailable
}
