/*
errors.go - Error taxonomy for the workforce engine

ERROR KINDS:
  ErrNotFound    a referenced employee, site, record... does not exist
  ErrBadRequest  missing input, missing rule configuration, no daily rate
  ErrConflict    month locked, cross-source overwrite, lock state mismatch,
                 duplicate key, deleting a record that is still referenced

Every domain failure is an *Error that unwraps to its kind, so callers can
branch with errors.Is and still read a precise Reason:

    if errors.Is(err, workforce.ErrConflict) {
        if workforce.ReasonOf(err) == workforce.ReasonSourceMismatch { ... }
    }

Infrastructure failures (database, disk) are returned wrapped and match
none of the kinds; the HTTP layer reports them as 500.
*/
package workforce

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL KINDS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)

// Reason is a machine-readable failure code.
type Reason string

const (
	ReasonNotFound            Reason = "NOT_FOUND"
	ReasonInvalidInput        Reason = "INVALID_INPUT"
	ReasonMonthLocked         Reason = "MONTH_LOCKED"
	ReasonSourceMismatch      Reason = "SOURCE_MISMATCH"
	ReasonNoDailyRate         Reason = "NO_DAILY_RATE"
	ReasonNoTradeCategory     Reason = "NO_TRADE_CATEGORY"
	ReasonNoPayrollRules      Reason = "NO_PAYROLL_RULES"
	ReasonNoProductivityRules Reason = "NO_PRODUCTIVITY_RULES"
	ReasonAlreadyLocked       Reason = "ALREADY_LOCKED"
	ReasonNotLocked           Reason = "NOT_LOCKED"
	ReasonReasonRequired      Reason = "REASON_REQUIRED"
	ReasonDuplicate           Reason = "DUPLICATE"
	ReasonInUse               Reason = "IN_USE"
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

type Error struct {
	Kind    error
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, reason Reason, format string, args ...any) error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return newError(ErrNotFound, ReasonNotFound, format, args...)
}

func badRequest(reason Reason, format string, args ...any) error {
	return newError(ErrBadRequest, reason, format, args...)
}

func conflict(reason Reason, format string, args ...any) error {
	return newError(ErrConflict, reason, format, args...)
}

// NotFoundf, BadRequestf and Conflictf let adapter packages raise errors of
// the same taxonomy.
func NotFoundf(format string, args ...any) error { return notFound(format, args...) }

func BadRequestf(reason Reason, format string, args ...any) error {
	return badRequest(reason, format, args...)
}

func Conflictf(reason Reason, format string, args ...any) error {
	return conflict(reason, format, args...)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ReasonOf returns the Reason carried by err, or "" for non-domain errors.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsBadRequest(err error) bool { return errors.Is(err, ErrBadRequest) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }

// errMonthLocked is shared by every mutation path guarded by the lock.
func errMonthLocked(p Period, action string) error {
	return conflict(ReasonMonthLocked, "Month %s is locked. Cannot %s.", p, action)
}
