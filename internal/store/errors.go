package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Reason extracts the message raised by the database for a failed statement.
// The second return is false for errors that did not come from the server,
// such as network failures or a cancelled context.
func Reason(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message, true
	}
	return "", false
}
