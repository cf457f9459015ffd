package errors

import "fmt"

// DBError family used by the postgres store. Each carries the operation id
// ("job.insert", "catalog.stream") so store failures are traceable without
// leaking SQL to callers.
type DBError struct {
	Op     string
	Reason string
}

func (e *DBError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Op, e.Reason)
}

func NewDBError(op, reason string) *DBError {
	return &DBError{Op: op, Reason: reason}
}

type DBInternalError struct {
	DBError
	cause error
}

func (e *DBInternalError) Unwrap() error { return e.cause }

func NewDBInternalError(op string, cause error) *DBInternalError {
	return &DBInternalError{DBError: DBError{Op: op, Reason: "internal error"}, cause: cause}
}

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(op, reason string) *DBNotFoundError {
	return &DBNotFoundError{DBError: DBError{Op: op, Reason: reason}}
}

type DBUniqueViolationError struct {
	DBError
	Column string
}

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}
