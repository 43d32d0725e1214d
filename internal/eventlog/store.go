package eventlog

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// internalPartition holds store bookkeeping (currently just the schema
// version marker). It never appears in Partitions output and cannot be
// dropped.
const internalPartition = "__maasd__"

// Store is the SQLite-backed event log. Appends to distinct partitions do
// not block one another beyond SQLite's own write serialization; appends
// to the same partition are serialized by a per-partition lock so each
// record gets a unique, strictly increasing sequence number.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	parts map[string]*partState
}

// partState tracks the next sequence number for one partition. The counter
// is loaded lazily from the highest stored key so reopening the database
// continues the sequence instead of restarting it.
type partState struct {
	mu     sync.Mutex
	next   uint64
	loaded bool
}

// Open opens (or creates) the event database and initializes the schema.
// WAL mode keeps concurrent appends and tail reads from blocking each
// other.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, parts: make(map[string]*partState)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		partition TEXT NOT NULL,
		key       BLOB NOT NULL,
		value     BLOB NOT NULL,
		PRIMARY KEY (partition, key)
	) WITHOUT ROWID;
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO events (partition, key, value) VALUES (?, ?, ?)`,
		internalPartition, seqKey(0), []byte{1},
	)
	return err
}

func (s *Store) partition(name string) *partState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.parts[name]
	if ps == nil {
		ps = &partState{}
		s.parts[name] = ps
	}
	return ps
}

// Append stores rec at the next sequence number of the named partition,
// creating the partition implicitly on first use. Returns the assigned
// sequence number. Each record is written atomically; concurrent appends
// never interleave bytes within a record.
func (s *Store) Append(partition string, rec Record) (uint64, error) {
	if partition == "" || partition == internalPartition {
		return 0, fmt.Errorf("eventlog: invalid partition %q", partition)
	}

	ps := s.partition(partition)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.loaded {
		next, err := s.loadNextSeq(partition)
		if err != nil {
			return 0, err
		}
		ps.next = next
		ps.loaded = true
	}

	seq := ps.next
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO events (partition, key, value) VALUES (?, ?, ?)`,
			partition, seqKey(seq), rec.Encode(),
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("eventlog: append to %q: %w", partition, err)
	}
	ps.next = seq + 1
	return seq, nil
}

func (s *Store) loadNextSeq(partition string) (uint64, error) {
	var key []byte
	err := s.db.QueryRow(
		`SELECT key FROM events WHERE partition = ? ORDER BY key DESC LIMIT 1`,
		partition,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("eventlog: load sequence for %q: %w", partition, err)
	}
	last, err := seqFromKey(key)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// ReadLast returns up to n events from the partition tail, newest first.
// A partition that was never written yields an empty slice, not an error.
// A stored record shorter than the fixed header is surfaced as
// ErrShortRecord rather than skipped.
func (s *Store) ReadLast(partition string, n int) ([]Event, error) {
	if n <= 0 || partition == internalPartition {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT key, value FROM events WHERE partition = ? ORDER BY key DESC LIMIT ?`,
		partition, n,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read %q: %w", partition, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		seq, err := seqFromKey(key)
		if err != nil {
			return nil, err
		}
		rec, err := DecodeRecord(value)
		if err != nil {
			return nil, fmt.Errorf("eventlog: partition %q seq %d: %w", partition, seq, err)
		}
		out = append(out, Event{Seq: seq, Partition: partition, Record: rec})
	}
	return out, rows.Err()
}

// DropPartition deletes every record of the named partition. Idempotent:
// dropping an absent partition is a no-op. The sequence counter resets,
// which is safe because no prior record survives to collide with.
func (s *Store) DropPartition(partition string) error {
	if partition == internalPartition {
		return nil
	}
	ps := s.partition(partition)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	err := retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM events WHERE partition = ?`, partition)
		return err
	})
	if err != nil {
		return fmt.Errorf("eventlog: drop %q: %w", partition, err)
	}
	ps.next = 1
	ps.loaded = true
	return nil
}

// DropAll removes every partition. Administrative reset only.
func (s *Store) DropAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM events WHERE partition != ?`, internalPartition)
		return err
	})
	if err != nil {
		return fmt.Errorf("eventlog: drop all: %w", err)
	}
	s.parts = make(map[string]*partState)
	return nil
}

// Partitions lists every known partition key, excluding the store's own
// bookkeeping partition.
func (s *Store) Partitions() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT partition FROM events WHERE partition != ? ORDER BY partition`,
		internalPartition,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list partitions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
