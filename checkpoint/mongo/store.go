// Package mongo implements checkpoint.Store over MongoDB, adapted from the
// teacher's features/session/mongo and features/run/mongo stores: one
// document per (thread_id, seq), loaded by highest seq on resume.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/deepresearchhq/engine/checkpoint"
)

const (
	defaultCollection = "research_checkpoints"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements checkpoint.Store over a single MongoDB collection
// indexed by (thread_id, seq).
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

type document struct {
	ThreadID          string                       `bson:"thread_id"`
	Seq               int64                        `bson:"seq"`
	StateJSON         []byte                       `bson:"state_json"`
	PendingDispatches []checkpoint.PendingDispatch `bson:"pending_dispatches"`
	Status            string                       `bson:"status"`
}

// New constructs a Store, ensuring the (thread_id, seq) index exists.
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

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(idxCtx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "seq", Value: -1}},
	})
	if err != nil {
		return nil, err
	}

	return &Store{coll: coll, timeout: timeout}, nil
}

// Append stores cp, assigning it the next sequence number for its thread by
// counting existing documents — a single-writer-per-thread assumption the
// driver upholds by running one workflow instance per thread_id.
func (s *Store) Append(ctx context.Context, cp checkpoint.Checkpoint) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.coll.CountDocuments(opCtx, bson.D{{Key: "thread_id", Value: cp.ThreadID}})
	if err != nil {
		return err
	}
	cp.Seq = count

	stateJSON, err := marshalState(cp.State)
	if err != nil {
		return err
	}

	_, err = s.coll.InsertOne(opCtx, document{
		ThreadID:          cp.ThreadID,
		Seq:               cp.Seq,
		StateJSON:         stateJSON,
		PendingDispatches: cp.PendingDispatches,
		Status:            string(cp.Status),
	})
	return err
}

// Latest returns the checkpoint with the highest seq for threadID.
func (s *Store) Latest(ctx context.Context, threadID string) (checkpoint.Checkpoint, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var doc document
	err := s.coll.FindOne(opCtx, bson.D{{Key: "thread_id", Value: threadID}}, opts).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}

	st, err := unmarshalState(doc.StateJSON)
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}

	return checkpoint.Checkpoint{
		ThreadID:          doc.ThreadID,
		Seq:               doc.Seq,
		State:             st,
		PendingDispatches: doc.PendingDispatches,
		Status:            checkpoint.RunStatus(doc.Status),
	}, true, nil
}
