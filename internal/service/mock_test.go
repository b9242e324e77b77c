package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
	"github.com/Strob0t/FeatureForge/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store. Reads return copies so tests
// see snapshot semantics like a real database.
type mockStore struct {
	mu       sync.Mutex
	features map[string]*feature.Feature
	logs     map[string][]feature.LogEntry
	packets  map[string]*packet.HandoffPacket
	seq      int
}

func newMockStore() *mockStore {
	return &mockStore{
		features: make(map[string]*feature.Feature),
		logs:     make(map[string][]feature.LogEntry),
		packets:  make(map[string]*packet.HandoffPacket),
	}
}

func (m *mockStore) seed(f feature.Feature) *feature.Feature {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Version == 0 {
		f.Version = 1
	}
	cp := f
	m.features[f.ID] = &cp
	return &cp
}

func copyFeature(f *feature.Feature, log []feature.LogEntry) *feature.Feature {
	cp := *f
	cp.PipelineLog = append([]feature.LogEntry(nil), log...)
	return &cp
}

func (m *mockStore) ListFeatures(_ context.Context) ([]feature.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]feature.Feature, 0, len(m.features))
	for id, f := range m.features {
		out = append(out, *copyFeature(f, m.logs[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) GetFeature(_ context.Context, id string) (*feature.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.features[id]
	if !ok {
		return nil, fmt.Errorf("get feature %s: %w", id, domain.ErrNotFound)
	}
	return copyFeature(f, m.logs[id]), nil
}

func (m *mockStore) CreateFeature(_ context.Context, req feature.CreateRequest) (*feature.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Now().UTC()
	f := &feature.Feature{
		ID:          fmt.Sprintf("f%d", m.seq),
		Title:       req.Title,
		Description: req.Description,
		Status:      feature.StatusPlanning,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.features[f.ID] = f
	return copyFeature(f, nil), nil
}

func (m *mockStore) UpdateFeatureState(_ context.Context, f *feature.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.features[f.ID]
	if !ok {
		return fmt.Errorf("update feature %s: %w", f.ID, domain.ErrNotFound)
	}
	if cur.Version != f.Version {
		return fmt.Errorf("update feature %s: %w", f.ID, domain.ErrConflict)
	}
	cur.Status = f.Status
	cur.CurrentAgent = f.CurrentAgent
	cur.RevisionCount = f.RevisionCount
	cur.NeedsAttention = f.NeedsAttention
	cur.ApprovedBy = f.ApprovedBy
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	f.Version = cur.Version
	return nil
}

func (m *mockStore) AppendLogEntry(_ context.Context, featureID string, entry feature.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[featureID] = append(m.logs[featureID], entry)
	return nil
}

func (m *mockStore) ListLogEntries(_ context.Context, featureID string) ([]feature.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]feature.LogEntry(nil), m.logs[featureID]...), nil
}

func (m *mockStore) CreatePacketVersion(_ context.Context, req packet.CreateRequest) (*packet.HandoffPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxVersion := 0
	var prevID string
	for _, p := range m.packets {
		if p.FeatureID != req.FeatureID || p.Phase != req.Phase {
			continue
		}
		if p.Status == packet.StatusInProgress {
			return nil, fmt.Errorf("create packet version: %w", domain.ErrConflict)
		}
		if p.Version > maxVersion {
			maxVersion = p.Version
			prevID = p.ID
		}
	}

	m.seq++
	p := &packet.HandoffPacket{
		ID:                fmt.Sprintf("p%d", m.seq),
		FeatureID:         req.FeatureID,
		Phase:             req.Phase,
		Version:           maxVersion + 1,
		Status:            packet.StatusInProgress,
		AgentID:           req.AgentID,
		AgentType:         req.AgentType,
		StartedAt:         time.Now().UTC(),
		OutputArtifacts:   []packet.Artifact{},
		OutputDecisions:   []string{},
		PreviousVersionID: prevID,
	}
	m.packets[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *mockStore) GetPacket(_ context.Context, id string) (*packet.HandoffPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packets[id]
	if !ok {
		return nil, fmt.Errorf("get packet %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) UpdatePacket(_ context.Context, p *packet.HandoffPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.packets[p.ID]
	if !ok {
		return fmt.Errorf("update packet %s: %w", p.ID, domain.ErrNotFound)
	}
	cur.Status = p.Status
	cur.CompletedAt = p.CompletedAt
	cur.DurationMs = p.DurationMs
	cur.OutputSummary = p.OutputSummary
	cur.OutputArtifacts = p.OutputArtifacts
	cur.OutputDecisions = p.OutputDecisions
	cur.RejectedReason = p.RejectedReason
	cur.DiffFromPrevious = p.DiffFromPrevious
	return nil
}

func (m *mockStore) ListPacketVersions(_ context.Context, featureID string, phase feature.Status) ([]packet.HandoffPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []packet.HandoffPacket
	for _, p := range m.packets {
		if p.FeatureID == featureID && p.Phase == phase {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *mockStore) LatestPacket(_ context.Context, featureID string, phase feature.Status) (*packet.HandoffPacket, error) {
	versions, _ := m.ListPacketVersions(context.Background(), featureID, phase)
	if len(versions) == 0 {
		return nil, fmt.Errorf("latest packet: %w", domain.ErrNotFound)
	}
	cp := versions[len(versions)-1]
	return &cp, nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i, p := range q.published {
		out[i] = p.subject
	}
	return out
}

// mockHub implements broadcast.Broadcaster for testing.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

// mockCache implements cache.Cache for testing.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
