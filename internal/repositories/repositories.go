package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// now returns the current time in the form stored by every repository.
func now() time.Time {
	return stamp(time.Now())
}

func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// affected returns the number of rows touched by result.
func affected(result sql.Result) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
