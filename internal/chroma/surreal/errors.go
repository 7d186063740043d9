package surreal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// ErrTransactionConflict indicates concurrent writes touched the same records.
// Callers may retry.
var ErrTransactionConflict = errors.New("transaction conflict")

// wrapQueryError maps SurrealDB query errors onto the chroma sentinels.
// uniqueErr is returned for unique index violations.
func wrapQueryError(err error, uniqueErr error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", uniqueErr, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}
	return err
}
