package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	bucketEntries   = "audit_entries"
	journalQueueCap = 256
)

// Journal is a local bbolt-backed audit journal. Writes are handed to a
// background worker so Record never blocks the event loop; a full queue drops
// the entry with a warning rather than stalling the caller.
type Journal struct {
	db     *bolt.DB
	logger *zap.Logger

	queue chan Entry
	done  chan struct{}
	once  sync.Once
}

// OpenJournal opens (or creates) the journal file at path.
func OpenJournal(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger,
		queue:  make(chan Entry, journalQueueCap),
		done:   make(chan struct{}),
	}
	go j.run()
	return j, nil
}

func (j *Journal) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	select {
	case j.queue <- entry:
	default:
		j.logger.Warn("audit journal queue full, entry dropped",
			zap.String("confirmation_id", entry.ConfirmationID),
		)
	}
}

// Close flushes queued entries and closes the database.
func (j *Journal) Close() error {
	j.once.Do(func() {
		close(j.queue)
		<-j.done
	})
	return j.db.Close()
}

// List returns up to limit entries in insertion order.
func (j *Journal) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]Entry, 0, limit)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketEntries)).Cursor()
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode audit entry %s: %w", k, err)
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Journal) run() {
	defer close(j.done)
	for entry := range j.queue {
		if err := j.write(entry); err != nil {
			j.logger.Error("write audit entry", zap.Error(err))
		}
	}
}

func (j *Journal) write(entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	// Key sorts by time so cursor iteration yields insertion order.
	key := fmt.Sprintf("%020d-%s", entry.Timestamp.UnixNano(), entry.ID)
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEntries)).Put([]byte(key), raw)
	})
}
