// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperror

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry = 1062 // ER_DUP_ENTRY
	mysqlDataTooLong    = 1406 // ER_DATA_TOO_LONG
)

// IsUniqueViolation reports whether err was caused by a unique index.
// Both SQLite drivers report the constraint in the message text.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsDataTooLong reports whether MySQL rejected a value that does not fit its
// column. SQLite never enforces column widths.
func IsDataTooLong(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDataTooLong
}
