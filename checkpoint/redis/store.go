// Package redis implements checkpoint.Store over Redis, used when
// low-latency resume matters more than long-term archival: the latest
// state snapshot per thread is stored as a single key, with pending
// dispatches kept in an adjoining list, following the redis-client layering
// the teacher's features/stream/pulse sink uses for its Pulse/Redis client.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/deepresearchhq/engine/checkpoint"
	"github.com/deepresearchhq/engine/state"
)

const keyPrefix = "research:checkpoint:"

// Store implements checkpoint.Store over a Redis client. Each thread owns
// one string key holding its latest {seq, state_json, status} snapshot as
// JSON, one list key holding that checkpoint's pending dispatches, and a seq
// counter key; Append replaces the snapshot and the list in one transaction
// pipeline.
type Store struct {
	client goredis.Cmdable
}

// New constructs a Store over an existing Redis client.
func New(client goredis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Store{client: client}, nil
}

type snapshot struct {
	Seq       int64  `json:"seq"`
	StateJSON []byte `json:"state_json"`
	Status    string `json:"status"`
}

func snapshotKey(threadID string) string   { return keyPrefix + threadID + ":snapshot" }
func dispatchesKey(threadID string) string { return keyPrefix + threadID + ":dispatches" }

// Append overwrites the thread's latest snapshot and pending-dispatch list.
// Seq is derived from INCR on a per-thread counter key, giving the same
// monotonic-per-thread guarantee the inmem/mongo backends provide.
func (s *Store) Append(ctx context.Context, cp checkpoint.Checkpoint) error {
	seq, err := s.client.Incr(ctx, keyPrefix+cp.ThreadID+":seq").Result()
	if err != nil {
		return fmt.Errorf("redis checkpoint: incr seq: %w", err)
	}
	cp.Seq = seq - 1 // first Append yields seq 0, matching inmem/mongo

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("redis checkpoint: marshal state: %w", err)
	}
	snap, err := json.Marshal(snapshot{Seq: cp.Seq, StateJSON: stateJSON, Status: string(cp.Status)})
	if err != nil {
		return fmt.Errorf("redis checkpoint: marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(cp.ThreadID), snap, 0)
	pipe.Del(ctx, dispatchesKey(cp.ThreadID))
	if len(cp.PendingDispatches) > 0 {
		entries := make([]any, 0, len(cp.PendingDispatches))
		for _, d := range cp.PendingDispatches {
			b, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("redis checkpoint: marshal pending dispatch: %w", err)
			}
			entries = append(entries, b)
		}
		pipe.RPush(ctx, dispatchesKey(cp.ThreadID), entries...)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the thread's current snapshot and pending dispatches.
func (s *Store) Latest(ctx context.Context, threadID string) (checkpoint.Checkpoint, bool, error) {
	raw, err := s.client.Get(ctx, snapshotKey(threadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("redis checkpoint: get snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("redis checkpoint: unmarshal snapshot: %w", err)
	}
	st := &state.OverallState{}
	if len(snap.StateJSON) > 0 {
		if err := json.Unmarshal(snap.StateJSON, st); err != nil {
			return checkpoint.Checkpoint{}, false, fmt.Errorf("redis checkpoint: unmarshal state: %w", err)
		}
	}

	rawDispatches, err := s.client.LRange(ctx, dispatchesKey(threadID), 0, -1).Result()
	if err != nil {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("redis checkpoint: lrange dispatches: %w", err)
	}
	dispatches := make([]checkpoint.PendingDispatch, 0, len(rawDispatches))
	for _, raw := range rawDispatches {
		var d checkpoint.PendingDispatch
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return checkpoint.Checkpoint{}, false, fmt.Errorf("redis checkpoint: unmarshal dispatch: %w", err)
		}
		dispatches = append(dispatches, d)
	}

	return checkpoint.Checkpoint{
		ThreadID:          threadID,
		Seq:               snap.Seq,
		State:             st,
		PendingDispatches: dispatches,
		Status:            checkpoint.RunStatus(snap.Status),
	}, true, nil
}
