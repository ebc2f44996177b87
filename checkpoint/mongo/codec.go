package mongo

import (
	"encoding/json"

	"github.com/deepresearchhq/engine/state"
)

// marshalState and unmarshalState give the durable document format a stable
// wire encoding independent of OverallState's in-memory layout, following
// the hooks package's event-envelope codec idiom (JSON payload carried
// alongside typed bookkeeping fields).
func marshalState(st *state.OverallState) ([]byte, error) {
	if st == nil {
		return nil, nil
	}
	return json.Marshal(st)
}

func unmarshalState(data []byte) (*state.OverallState, error) {
	if len(data) == 0 {
		return nil, nil
	}
	st := &state.OverallState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}
