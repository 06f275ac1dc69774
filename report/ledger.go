package report

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// Ledger is the local run-history store. Each finished run is appended under
// its start timestamp, so `purku runs` can show what was destroyed when even
// after the accounts themselves are gone.
type Ledger struct {
	db *bolt.DB
}

// OpenLedger opens (or creates) the ledger file.
func OpenLedger(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying store.
func (l *Ledger) Close() error { return l.db.Close() }

// Append stores a finished report.
func (l *Ledger) Append(r *Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := []byte(r.StartedAt.UTC().Format(time.RFC3339Nano))

	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key, value)
	})
}

// List returns up to limit reports, newest first.
func (l *Ledger) List(limit int) ([]*Report, error) {
	var reports []*Report

	err := l.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(runsBucket).Cursor()
		for k, v := cursor.Last(); k != nil && len(reports) < limit; k, v = cursor.Prev() {
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			reports = append(reports, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}
