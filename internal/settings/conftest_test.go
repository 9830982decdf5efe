package settings

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

type mockReader struct {
	values map[string]json.RawMessage
	err    error
	calls  atomic.Int32
}

func (m *mockReader) GetSettings(_ context.Context, _ []string) (map[string]json.RawMessage, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.values, nil
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }
