// Package store persists per-identity conversation state as a single document.
//
// Every mutation goes through Update, which runs load -> mutate -> save while
// holding the store's write lock. Snapshots returned by Load are private copies.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Snapshot for identities that have never written.
var ErrNotFound = errors.New("identity not found")

type Store interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	// Update runs fn against the freshly loaded document and saves it if fn returns nil.
	Update(ctx context.Context, fn func(doc *Document) error) error
	Close() error
}

// Snapshot returns a copy of a single record.
func Snapshot(ctx context.Context, s Store, identity string) (*UserRecord, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Users[identity]
	if !ok {
		return nil, ErrNotFound
	}
	rec.normalize()
	return rec.Clone(), nil
}

// SnapshotOrDefault is Snapshot with a default record for unseen identities.
func SnapshotOrDefault(ctx context.Context, s Store, identity string, now time.Time) (*UserRecord, error) {
	rec, err := Snapshot(ctx, s, identity)
	if errors.Is(err, ErrNotFound) {
		return newUserRecord(now), nil
	}
	return rec, err
}

// UpdateUser is Update scoped to one identity, creating the record when needed.
func UpdateUser(ctx context.Context, s Store, identity string, now time.Time, fn func(rec *UserRecord) error) error {
	return s.Update(ctx, func(doc *Document) error {
		return fn(doc.GetOrCreate(identity, now))
	})
}

func prepare(doc *Document) {
	doc.Version = SchemaVersion
	if doc.Users == nil {
		doc.Users = make(map[string]*UserRecord)
	}
	for _, rec := range doc.Users {
		rec.normalize()
	}
}

func checkVersion(doc *Document) error {
	if doc.Version > SchemaVersion {
		return fmt.Errorf("document schema version %d is newer than supported %d", doc.Version, SchemaVersion)
	}
	return nil
}
