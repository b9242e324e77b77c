// Package service contains the business logic orchestrating the domain
// packages over the database, queue, cache and broadcast ports.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/FeatureForge/internal/adapter/otel"
	"github.com/Strob0t/FeatureForge/internal/adapter/ws"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/step"
	"github.com/Strob0t/FeatureForge/internal/port/broadcast"
	"github.com/Strob0t/FeatureForge/internal/port/database"
	"github.com/Strob0t/FeatureForge/internal/port/messagequeue"
)

// FeatureService handles feature lifecycle logic: creation, status
// transitions, pipeline log appends and the derived step view.
type FeatureService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otel.Metrics
	now     func() time.Time
}

// NewFeatureService creates a new FeatureService. metrics may be nil.
func NewFeatureService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, metrics *otel.Metrics) *FeatureService {
	return &FeatureService{
		store:   store,
		queue:   queue,
		hub:     hub,
		metrics: metrics,
		now:     time.Now,
	}
}

// List returns all features, newest first.
func (s *FeatureService) List(ctx context.Context) ([]feature.Feature, error) {
	return s.store.ListFeatures(ctx)
}

// Get returns a feature by ID, including its pipeline log.
func (s *FeatureService) Get(ctx context.Context, id string) (*feature.Feature, error) {
	return s.store.GetFeature(ctx, id)
}

// Create validates and persists a new feature, then announces it.
func (s *FeatureService) Create(ctx context.Context, req feature.CreateRequest) (*feature.Feature, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	f, err := s.store.CreateFeature(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publishJSON(ctx, messagequeue.SubjectFeatureCreated, f)
	s.hub.BroadcastEvent(ctx, ws.EventFeatureCreated, f)
	return f, nil
}

// Transition moves a feature to the target status through the state
// machine. Derived fields (current agent, attention flag) are reconciled
// with the new phase; the pipeline log is not touched.
func (s *FeatureService) Transition(ctx context.Context, id string, target feature.Status) (*feature.Feature, error) {
	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := f.Status
	if err := feature.Apply(f, target); err != nil {
		if s.metrics != nil {
			s.metrics.TransitionsRejected.Add(ctx, 1)
		}
		return nil, err
	}

	s.reconcile(f)
	s.resetCycleState(f, prev)

	if err := s.store.UpdateFeatureState(ctx, f); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.Add(ctx, 1)
	}

	s.announceStatus(ctx, f)
	return f, nil
}

// Approve records a human decision at a gate. The target status goes
// through the same state machine validation as a plain transition, and
// the approver is stamped on the feature. This is how review -> approved,
// approved -> pr_submitted and pr_submitted -> done each record who
// signed off.
func (s *FeatureService) Approve(ctx context.Context, id string, target feature.Status, approvedBy string) (*feature.Feature, error) {
	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		return nil, fmt.Errorf("%w: approved_by is required", domain.ErrValidation)
	}

	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := f.Status
	if err := feature.Apply(f, target); err != nil {
		if s.metrics != nil {
			s.metrics.TransitionsRejected.Add(ctx, 1)
		}
		return nil, err
	}
	f.ApprovedBy = approvedBy
	s.reconcile(f)
	s.resetCycleState(f, prev)

	if err := s.store.UpdateFeatureState(ctx, f); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.Add(ctx, 1)
	}

	// The approval itself is a pipeline event. Appended only after the
	// transition landed, so a conflicting writer leaves no orphan entry.
	entry := feature.LogEntry{
		Timestamp: s.now().UTC(),
		Agent:     "HBx",
		Stage:     string(prev),
		Verdict:   feature.VerdictApproved,
	}
	if err := s.appendEntry(ctx, f.ID, entry); err != nil {
		slog.Error("approval log append failed", "feature_id", f.ID, "error", err)
	} else {
		f.PipelineLog = append(f.PipelineLog, entry)
	}

	s.announceStatus(ctx, f)
	return f, nil
}

// AppendLog validates and appends one log entry on behalf of an external
// agent. A REVISE verdict bumps the feature's revision counter.
func (s *FeatureService) AppendLog(ctx context.Context, id string, entry feature.LogEntry) (*feature.Feature, error) {
	if entry.Agent == "" {
		return nil, fmt.Errorf("%w: agent is required", domain.ErrValidation)
	}
	switch entry.Verdict {
	case feature.VerdictApproved, feature.VerdictComplete, feature.VerdictShip,
		feature.VerdictRevise, feature.VerdictReject:
	default:
		return nil, fmt.Errorf("%w: invalid verdict %q", domain.ErrValidation, entry.Verdict)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}

	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.appendEntry(ctx, f.ID, entry); err != nil {
		return nil, err
	}
	f.PipelineLog = append(f.PipelineLog, entry)

	if entry.Verdict == feature.VerdictRevise {
		f.RevisionCount++
		if err := s.store.UpdateFeatureState(ctx, f); err != nil {
			return nil, err
		}
		s.announceStatus(ctx, f)
	}
	return f, nil
}

// Log returns the feature's pipeline log ordered by timestamp.
func (s *FeatureService) Log(ctx context.Context, id string) ([]feature.LogEntry, error) {
	if _, err := s.store.GetFeature(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListLogEntries(ctx, id)
}

// Steps returns the derived six-step pipeline view for a feature.
func (s *FeatureService) Steps(ctx context.Context, id string) ([]step.State, error) {
	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	return step.Derive(f, s.now()), nil
}

// Diagnostics returns the stall and escalation signals for a feature.
func (s *FeatureService) Diagnostics(ctx context.Context, id string) (*feature.Diagnostics, error) {
	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	d := feature.Diagnose(f, s.now())
	return &d, nil
}

// reconcile aligns the derived fields with the feature's current status.
func (s *FeatureService) reconcile(f *feature.Feature) {
	if agent, ok := feature.AgentForPhase(f.Status); ok {
		f.CurrentAgent = agent
	} else {
		f.CurrentAgent = ""
	}
	f.NeedsAttention = feature.HumanGated(f.Status)
}

// resetCycleState clears per-cycle counters after a status change landed.
// Revision counts belong to one phase cycle, so advancing to a later phase
// starts from zero; a cancelled -> planning restart also drops the old
// approval.
func (s *FeatureService) resetCycleState(f *feature.Feature, prev feature.Status) {
	switch {
	case prev == feature.StatusCancelled && f.Status == feature.StatusPlanning:
		f.RevisionCount = 0
		f.ApprovedBy = ""
	case feature.Advances(prev, f.Status):
		f.RevisionCount = 0
	}
}

// appendEntry writes one log entry and fans the event out to NATS and
// the dashboard. The pipeline runner shares this path.
func (s *FeatureService) appendEntry(ctx context.Context, featureID string, entry feature.LogEntry) error {
	if err := s.store.AppendLogEntry(ctx, featureID, entry); err != nil {
		return err
	}
	s.publishJSON(ctx, messagequeue.SubjectFeatureLog, entry)
	s.hub.BroadcastEvent(ctx, ws.EventFeatureLog, ws.FeatureLogEvent{
		FeatureID: featureID,
		Timestamp: entry.Timestamp,
		Agent:     entry.Agent,
		Stage:     entry.Stage,
		Verdict:   string(entry.Verdict),
	})
	return nil
}

func (s *FeatureService) announceStatus(ctx context.Context, f *feature.Feature) {
	s.publishJSON(ctx, messagequeue.SubjectFeatureStatus, f)
	s.hub.BroadcastEvent(ctx, ws.EventFeatureStatus, ws.FeatureStatusEvent{
		FeatureID:      f.ID,
		Status:         string(f.Status),
		CurrentAgent:   f.CurrentAgent,
		NeedsAttention: f.NeedsAttention,
		RevisionCount:  f.RevisionCount,
	})
}

// publishJSON publishes a payload to NATS. The DB write already landed,
// so a queue failure is logged rather than returned.
func (s *FeatureService) publishJSON(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("queue payload marshal failed", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("queue publish failed", "subject", subject, "error", err)
	}
}
