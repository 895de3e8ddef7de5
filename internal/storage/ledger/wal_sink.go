package ledger

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	walSegmentLimit = 1000
	walMaxSegments  = 100
	walDirPerm      = 0o755
	recordKeyPrefix = "ledger_entry_"
)

// WALSink mirrors ledger records into a write-ahead log as an operator audit trail.
// On startup the bot only reads it to report what a previous run left unresolved.
type WALSink struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALSink opens (or creates) a WAL under dir.
func NewWALSink(dir string) (*WALSink, error) {
	if dir == "" {
		return nil, errors.New("ledger WAL dir is required")
	}
	if err := os.MkdirAll(dir, walDirPerm); err != nil {
		return nil, errors.Wrapf(err, "create ledger WAL dir %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALSink{wal: wal}, nil
}

// Append writes the record under the next WAL index.
func (s *WALSink) Append(record Record) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger WAL is not initialized")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal ledger record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, recordKeyPrefix+record.Entry.ID, payload)
}

// Records reads back every mirrored record, for operator tooling.
func (s *WALSink) Records() ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger WAL is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.wal.CurrentIndex()
	records := make([]Record, 0, current)
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, recordKeyPrefix) {
			continue
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode ledger record")
		}
		records = append(records, record)
	}
	return records, nil
}

// Unresolved returns the last state of every entry that did not end protected or failed,
// in order of first appearance.
func Unresolved(records []Record) []Entry {
	last := make(map[string]Entry)
	var order []string
	for _, r := range records {
		if _, seen := last[r.Entry.ID]; !seen {
			order = append(order, r.Entry.ID)
		}
		last[r.Entry.ID] = r.Entry
	}

	var out []Entry
	for _, id := range order {
		switch last[id].Status {
		case StatusProtected, StatusEntryFailed:
		default:
			out = append(out, last[id])
		}
	}
	return out
}

// Close closes the underlying WAL.
func (s *WALSink) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
