package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientData is returned when history is shorter than the long EMA window.
	ErrInsufficientData = errors.New("insufficient price history")
	// ErrUnorderedHistory is returned for candles that are not strictly ascending by time.
	ErrUnorderedHistory = errors.New("price history is not strictly ascending")
	// ErrTransport covers timeouts, network failures and rate limiting.
	ErrTransport = errors.New("exchange transport error")
	// ErrOrderRejected is an exchange-side validation failure.
	ErrOrderRejected = errors.New("order rejected by exchange")
	// ErrNoFill means the exchange accepted a market order but executed nothing.
	ErrNoFill = errors.New("market order was not filled")
	// ErrOrderNotFound means the exchange has no order with the queried client id.
	ErrOrderNotFound = errors.New("order not found on exchange")
	// ErrFillUnknown means the exchange accepted an order but its fill could not be read back.
	ErrFillUnknown = errors.New("order accepted but fill unknown")
	// ErrEntryUnknown means an entry may have executed and reconciliation could not tell.
	ErrEntryUnknown = errors.New("entry order state unknown")
)

// ExchangeError classifies a failed exchange call.
type ExchangeError struct {
	Op       string
	Rejected bool
	Err      error
}

// NewTransportError wraps err as a recoverable transport failure.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExchangeError{Op: op, Err: err}
}

// NewRejectedError wraps err as an exchange-side rejection.
func NewRejectedError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExchangeError{Op: op, Rejected: true, Err: err}
}

func (e *ExchangeError) Error() string {
	kind := "transport"
	if e.Rejected {
		kind = "rejected"
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, kind, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrOrderRejected or ErrTransport.
func (e *ExchangeError) Is(target error) bool {
	switch target {
	case ErrOrderRejected:
		return e.Rejected
	case ErrTransport:
		return !e.Rejected
	}
	return false
}

// IsRejected reports whether err carries an exchange rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOrderRejected)
}

// UnprotectedPositionError reports an entry that filled while its stop-loss failed.
type UnprotectedPositionError struct {
	EntryID   string
	Pair      Pair
	Entry     PlacedOrder
	StopPrice decimal.Decimal
	Err       error
}

func (e *UnprotectedPositionError) Error() string {
	return fmt.Sprintf("unprotected position %s on %s: bought %s at %s, stop at %s failed: %v",
		e.EntryID, e.Pair.String(), e.Entry.Quantity, e.Entry.Price, e.StopPrice, e.Err)
}

func (e *UnprotectedPositionError) Unwrap() error {
	return e.Err
}
