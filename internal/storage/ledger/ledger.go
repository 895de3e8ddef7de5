// Package ledger keeps an append-only record of every entry/stop pair the bot places.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

// Status is the lifecycle stage of an entry.
type Status string

const (
	StatusEntryPending Status = "entry_pending"
	StatusEntryFailed  Status = "entry_failed"
	// StatusEntryUnknown means the entry may have executed but its fill could not be confirmed.
	StatusEntryUnknown Status = "entry_unknown"
	// StatusStopPending means the entry filled and a stop submission is in flight.
	StatusStopPending Status = "stop_pending"
	StatusProtected   Status = "protected"
	StatusUnprotected Status = "unprotected"
)

// Prefixes of the deterministic client order ids derived from the entry id.
const (
	entryClientPrefix = "tbe"
	stopClientPrefix  = "tbs"
)

// ErrUnknownEntry is returned for ids the ledger has never seen.
var ErrUnknownEntry = errors.New("unknown ledger entry")

// ErrInvalidTransition is returned when an entry is not in a state that allows the change.
var ErrInvalidTransition = errors.New("invalid ledger transition")

// Entry is the current state of one entry order and its protective stop.
type Entry struct {
	ID                string          `json:"id"`
	Pair              string          `json:"pair"`
	Status            Status          `json:"status"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	ReferencePrice    decimal.Decimal `json:"reference_price"`
	ExecutedQuantity  decimal.Decimal `json:"executed_quantity"`
	ExecutedPrice     decimal.Decimal `json:"executed_price"`
	StopPrice         decimal.Decimal `json:"stop_price"`
	EntryOrderID      string          `json:"entry_order_id,omitempty"`
	EntryClientID     string          `json:"entry_client_id"`
	StopOrderID       string          `json:"stop_order_id,omitempty"`
	StopClientID      string          `json:"stop_client_id"`
	StopAttempts      int             `json:"stop_attempts"`
	Acknowledged      bool            `json:"acknowledged,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Record is one appended snapshot of an entry.
type Record struct {
	Index uint64 `json:"index"`
	Entry Entry  `json:"entry"`
}

// Sink receives every appended record, e.g. an on-disk audit log.
type Sink interface {
	Append(record Record) error
}

// Ledger is an in-memory, process-lifetime ledger safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	records []Record
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an empty ledger. sink may be nil.
func New(logger *zap.Logger, sink Sink) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		entries: make(map[string]*Entry),
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Open records a new entry intent before it is sent to the exchange.
func (l *Ledger) Open(pair domain.Pair, intent domain.OrderIntent) (Entry, error) {
	// client order ids are capped at 36 chars on Binance and Bybit
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	now := l.now()
	entry := &Entry{
		ID:                id,
		Pair:              pair.String(),
		Status:            StatusEntryPending,
		RequestedQuantity: intent.Quantity,
		ReferencePrice:    intent.ReferencePrice,
		EntryClientID:     entryClientPrefix + id,
		StopClientID:      stopClientPrefix + id,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id] = entry
	l.appendLocked(entry)
	return *entry, nil
}

// EntryFailed marks the entry order as failed; no capital was committed.
func (l *Ledger) EntryFailed(id string, cause error) (Entry, error) {
	return l.transition(id, []Status{StatusEntryPending, StatusEntryUnknown}, func(e *Entry) {
		e.Status = StatusEntryFailed
		e.Error = errString(cause)
	})
}

// EntryUnknown parks an entry whose outcome reconciliation could not determine.
// acknowledged records that the exchange took the order.
func (l *Ledger) EntryUnknown(id string, cause error, acknowledged bool) (Entry, error) {
	return l.transition(id, []Status{StatusEntryPending}, func(e *Entry) {
		e.Status = StatusEntryUnknown
		e.Acknowledged = acknowledged
		e.Error = errString(cause)
	})
}

// EntryFilled records the executed entry and the stop about to be submitted.
func (l *Ledger) EntryFilled(id string, order domain.PlacedOrder, stopPrice decimal.Decimal) (Entry, error) {
	return l.transition(id, []Status{StatusEntryPending, StatusEntryUnknown}, func(e *Entry) {
		e.Status = StatusStopPending
		e.EntryOrderID = order.ID
		e.ExecutedQuantity = order.Quantity
		e.ExecutedPrice = order.Price
		e.StopPrice = stopPrice
		e.StopAttempts++
		e.Error = ""
	})
}

// Protected records a successfully placed stop.
func (l *Ledger) Protected(id string, stop domain.PlacedOrder) (Entry, error) {
	return l.transition(id, []Status{StatusStopPending}, func(e *Entry) {
		e.Status = StatusProtected
		e.StopOrderID = stop.ID
		e.Error = ""
	})
}

// Unprotected records a failed stop submission for a filled entry.
func (l *Ledger) Unprotected(id string, cause error) (Entry, error) {
	return l.transition(id, []Status{StatusStopPending}, func(e *Entry) {
		e.Status = StatusUnprotected
		e.Error = errString(cause)
	})
}

// BeginReprotect claims an unprotected entry for one more stop submission.
// Only one caller can hold the claim at a time.
func (l *Ledger) BeginReprotect(id string) (Entry, error) {
	return l.transition(id, []Status{StatusUnprotected}, func(e *Entry) {
		e.Status = StatusStopPending
		e.StopAttempts++
	})
}

// Get returns the current state of an entry.
func (l *Ledger) Get(id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, errors.Wrapf(ErrUnknownEntry, "id %s", id)
	}
	return *e, nil
}

// UnprotectedEntries lists entries that may hold a position without a stop:
// failed stops and entries of unknown outcome, in creation order.
func (l *Ledger) UnprotectedEntries() []Entry {
	return l.EntriesIn(StatusUnprotected, StatusEntryUnknown)
}

// EntriesIn lists entries currently in one of statuses, in creation order.
func (l *Ledger) EntriesIn(statuses ...Status) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	seen := make(map[string]bool)
	for _, r := range l.records {
		if seen[r.Entry.ID] {
			continue
		}
		seen[r.Entry.ID] = true
		if e := l.entries[r.Entry.ID]; hasStatus(e.Status, statuses) {
			out = append(out, *e)
		}
	}
	return out
}

// HasUnprotected reports whether any entry may hold a position without a stop.
func (l *Ledger) HasUnprotected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Status == StatusUnprotected || e.Status == StatusEntryUnknown {
			return true
		}
	}
	return false
}

// RecordsAfter returns all records with Index > index.
func (l *Ledger) RecordsAfter(index uint64) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.records)) {
		return nil
	}
	out := make([]Record, len(l.records)-int(index))
	copy(out, l.records[index:])
	return out
}

// CurrentIndex returns the index of the latest record, 0 when empty.
func (l *Ledger) CurrentIndex() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

func (l *Ledger) transition(id string, from []Status, mutate func(e *Entry)) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return Entry{}, errors.Wrapf(ErrUnknownEntry, "id %s", id)
	}
	if !hasStatus(e.Status, from) {
		return *e, errors.Wrapf(ErrInvalidTransition, "entry %s is %s", id, e.Status)
	}

	mutate(e)
	e.UpdatedAt = l.now()
	l.appendLocked(e)
	return *e, nil
}

// appendLocked must be called with l.mu held.
func (l *Ledger) appendLocked(e *Entry) {
	record := Record{Index: uint64(len(l.records)) + 1, Entry: *e}
	l.records = append(l.records, record)

	if l.sink == nil {
		return
	}
	if err := l.sink.Append(record); err != nil {
		l.logger.Error("failed to mirror ledger record",
			zap.Uint64("index", record.Index),
			zap.String("entry_id", e.ID),
			zap.Error(err))
	}
}

func hasStatus(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
