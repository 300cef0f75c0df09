package sqlite

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var errTxClosed = errors.New("transaction already closed")

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// storeError classifies a driver failure: lock contention and expired
// deadlines become ErrTimeout, anything else becomes ErrTransaction. Errors
// already carrying a store code pass through.
func storeError(op string, key versioned.Key, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	metadata := map[string]string{"op": op}
	if key.Type != "" {
		metadata["type"] = key.Type
		metadata["id"] = key.ID
	}
	message := op
	if key.Type != "" {
		message = fmt.Sprintf("%s %s", op, key)
	}
	if isSQLiteBusyError(err) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.WrapWithMetadata(apperrors.CodeStoreTimeout, message, metadata, err)
	}
	return apperrors.WrapWithMetadata(apperrors.CodeStoreTransactionFailed, message, metadata, err)
}

func serializationError(op string, key versioned.Key, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeStoreSerializationFailed,
		fmt.Sprintf("%s %s", op, key),
		map[string]string{"op": op, "type": key.Type, "id": key.ID},
		err)
}
