// Package mongo implements runstore.Store over MongoDB, reusing the same
// go.mongodb.org/mongo-driver/v2 client/collection/index plumbing as
// checkpoint/mongo: one document per thread_id, upserted in place rather
// than appended, since runstore only ever needs a thread's current coarse
// status rather than a full history.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/deepresearchhq/engine/runstore"
)

const (
	defaultCollection = "research_runs"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements runstore.Store over a single MongoDB collection indexed
// by thread_id.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

type document struct {
	ThreadID  string    `bson:"_id"`
	Status    string    `bson:"status"`
	StartedAt time.Time `bson:"started_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// New constructs a Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	return &Store{coll: coll, timeout: timeout}, nil
}

// Upsert inserts or updates the record for r.ThreadID, preserving the
// document's original started_at across updates, matching the inmem
// backend's semantics.
func (s *Store) Upsert(ctx context.Context, r runstore.Record) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	startedAt := r.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(r.Status)},
			{Key: "updated_at", Value: updatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "started_at", Value: startedAt},
		}},
	}
	_, err := s.coll.UpdateOne(opCtx,
		bson.D{{Key: "_id", Value: r.ThreadID}},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// Load retrieves the record for threadID, or runstore.ErrNotFound.
func (s *Store) Load(ctx context.Context, threadID string) (runstore.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc document
	err := s.coll.FindOne(opCtx, bson.D{{Key: "_id", Value: threadID}}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return runstore.Record{}, runstore.ErrNotFound
	}
	if err != nil {
		return runstore.Record{}, err
	}
	return runstore.Record{
		ThreadID:  doc.ThreadID,
		Status:    runstore.Status(doc.Status),
		StartedAt: doc.StartedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
