// Package repository contains the MySQL data access layer. Every
// repository is bound to a dbx.DBTX so the same code runs against the
// pool or inside a transaction opened by the service layer.
//
// Repositories translate driver failures into the sentinels below so
// higher layers never depend on database/sql or driver error types.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. a
// second purchase of the same note by the same buyer or a taken email.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto repository sentinels and wraps
// everything else with op for context.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}
