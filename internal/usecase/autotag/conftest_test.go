package autotag

import (
	"context"
	"sync"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

type mockTags struct {
	all         []domain.Tag
	listErr     error
	byNamesArgs []string
}

func (m *mockTags) List(context.Context) ([]domain.Tag, error) {
	return m.all, m.listErr
}

func (m *mockTags) ListByNames(_ context.Context, names []string) ([]domain.Tag, error) {
	m.byNamesArgs = names
	var out []domain.Tag
	for _, t := range m.all {
		for _, n := range names {
			if t.Name == n {
				out = append(out, t)
			}
		}
	}
	return out, m.listErr
}

type mockClassifier struct {
	mu       sync.Mutex
	calls    int
	text     string
	labels   []string
	infer    bool
	classify func(labels []string) (domain.Classification, error)
}

func (m *mockClassifier) Classify(_ context.Context, text string, labels []string, useInference bool) (domain.Classification, error) {
	m.mu.Lock()
	m.calls++
	m.text, m.labels, m.infer = text, labels, useInference
	m.mu.Unlock()
	return m.classify(labels)
}

func (m *mockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type staticConfig struct {
	snap *settings.Snapshot
}

func (s *staticConfig) Get(context.Context) (*settings.Snapshot, error) { return s.snap, nil }

// mockTickets serves untagged in the given (newest first) order and hides
// tickets once SetTags stored tags for them.
type mockTickets struct {
	mu       sync.Mutex
	untagged []domain.Ticket
	listErr  error
	setErr   error
	set      map[string][]string
	cursors  []string
}

func (m *mockTickets) ListUntagged(_ context.Context, after *domain.TicketCursor, limit int) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor := ""
	if after != nil {
		cursor = after.ID
	}
	m.cursors = append(m.cursors, cursor)
	if m.listErr != nil {
		return nil, m.listErr
	}

	start := 0
	if after != nil {
		for i, t := range m.untagged {
			if t.ID == after.ID {
				start = i + 1
			}
		}
	}
	var out []domain.Ticket
	for _, t := range m.untagged[start:] {
		if _, tagged := m.set[t.ID]; tagged {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockTickets) SetTags(_ context.Context, ticketID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.set == nil {
		m.set = make(map[string][]string)
	}
	m.set[ticketID] = tagIDs
	return nil
}

var catalog = []domain.Tag{
	{ID: "t1", Name: "billing"},
	{ID: "t2", Name: "bug"},
	{ID: "t3", Name: "feature"},
}

func fixedResult(labels []string, scores []float64) func([]string) (domain.Classification, error) {
	return func([]string) (domain.Classification, error) {
		return domain.Classification{Labels: labels, Scores: scores}, nil
	}
}
