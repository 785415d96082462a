// Package journal keeps a best-effort on-device log of session events
// (phase changes, intents, captures) in BadgerDB, for post-incident QA
// review. It never surfaces errors into the session path: a failed write is
// logged and dropped.
package journal

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Event is one recorded session occurrence.
type Event struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
}

// Journal is the badger-backed event log. Safe for concurrent use across
// sessions.
type Journal struct {
	db *badger.DB

	mu   sync.Mutex
	seqs map[string]uint64
}

// Open creates or opens the journal at dir.
func Open(dir string) (*Journal, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory runs the journal without disk persistence. Used in tests.
func OpenInMemory() (*Journal, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Journal, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, seqs: make(map[string]uint64)}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends one event for a session. Best-effort: failures are logged,
// never returned.
func (j *Journal) Record(sessionID, kind, detail string) {
	j.mu.Lock()
	j.seqs[sessionID]++
	seq := j.seqs[sessionID]
	j.mu.Unlock()

	ev := Event{Session: sessionID, Seq: seq, At: time.Now(), Kind: kind, Detail: detail}
	val, err := json.Marshal(ev)
	if err != nil {
		log.Printf("journal marshal failed: %v", err)
		return
	}
	key := eventKey(sessionID, seq)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		log.Printf("journal write failed for session %s: %v", sessionID, err)
	}
}

// Events returns all recorded events for a session in sequence order.
func (j *Journal) Events(sessionID string) ([]Event, error) {
	prefix := []byte(fmt.Sprintf("sess:%s:", sessionID))
	var events []Event
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ev Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	return events, err
}

// eventKey is zero-padded so lexicographic iteration yields sequence order.
func eventKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("sess:%s:%012d", sessionID, seq))
}
