package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const historyBucketName = "history"

// HistoryEntry is the recorded outcome of one processed item
type HistoryEntry struct {
	BatchID    string    `json:"batch_id"`
	ItemID     string    `json:"item_id"`
	Filename   string    `json:"filename"`
	Merchant   string    `json:"merchant,omitempty"`
	Date       string    `json:"date,omitempty"`
	Total      float64   `json:"total,omitempty"`
	StoredID   string    `json:"stored_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func (e *HistoryEntry) key() []byte {
	return []byte(e.BatchID + "/" + e.ItemID)
}

// DB defines the interface for history storage
type DB interface {
	// SaveEntries stores entries in a single transaction
	SaveEntries(entries []*HistoryEntry) error

	// GetEntry retrieves one entry
	GetEntry(batchID, itemID string) (*HistoryEntry, error)

	// ListEntries returns all entries, most recent first
	ListEntries() ([]*HistoryEntry, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveEntries stores entries keyed by batch and item id
func (b *BoltDB) SaveEntries(entries []*HistoryEntry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshaling history entry: %w", err)
			}
			if err := bucket.Put(entry.key(), data); err != nil {
				return fmt.Errorf("storing history entry: %w", err)
			}
		}
		return nil
	})
}

// GetEntry retrieves one entry
func (b *BoltDB) GetEntry(batchID, itemID string) (*HistoryEntry, error) {
	var entry *HistoryEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		data := bucket.Get([]byte(batchID + "/" + itemID))
		if data == nil {
			return fmt.Errorf("history entry not found: %s/%s", batchID, itemID)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns all entries, most recent first
func (b *BoltDB) ListEntries() ([]*HistoryEntry, error) {
	entries := make([]*HistoryEntry, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var entry HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling history entry: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Keys are ordered by batch id, not time
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].FinishedAt.Equal(entries[j].FinishedAt) {
			return entries[i].FinishedAt.After(entries[j].FinishedAt)
		}
		return entries[i].ItemID < entries[j].ItemID
	})
	return entries, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
