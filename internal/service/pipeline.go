package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/FeatureForge/internal/adapter/otel"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
	"github.com/Strob0t/FeatureForge/internal/port/database"
)

// PipelineService drives features through the automatable phases. Each
// run works one feature: open a packet, do the phase work, append the
// log entry, advance the status, repeat until a human gate or terminal
// status is reached.
type PipelineService struct {
	store    database.Store
	features *FeatureService
	packets  *PacketService
	metrics  *otel.Metrics
	delay    time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	sem *semaphore.Weighted
	wg  sync.WaitGroup
	mu  sync.Mutex
	// active holds feature IDs with a run in flight; one run per feature.
	active map[string]struct{}
}

// NewPipelineService creates a new PipelineService. maxConcurrent caps
// runs in flight across all features.
func NewPipelineService(store database.Store, features *FeatureService, packets *PacketService, metrics *otel.Metrics, stepDelay time.Duration, maxConcurrent int) *PipelineService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PipelineService{
		store:    store,
		features: features,
		packets:  packets,
		metrics:  metrics,
		delay:    stepDelay,
		now:      time.Now,
		sleep:    sleepCtx,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		active:   make(map[string]struct{}),
	}
}

// Start drives the feature through its automatable phases within the
// caller's request lifetime and returns the feature as it stands when the
// loop stops, at a human gate or a terminal status. It returns
// domain.ErrConflict when the feature is not in an automatable phase, is
// waiting on a human, or already has a run in flight.
func (s *PipelineService) Start(ctx context.Context, featureID string) (*feature.Feature, error) {
	f, err := s.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if f.NeedsAttention {
		return nil, fmt.Errorf("%w: feature is awaiting human attention", domain.ErrConflict)
	}
	if !feature.Automatable(f.Status) {
		return nil, fmt.Errorf("%w: status %s is not runnable", domain.ErrConflict, f.Status)
	}

	s.mu.Lock()
	if _, running := s.active[featureID]; running {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: pipeline already running for feature", domain.ErrConflict)
	}
	s.active[featureID] = struct{}{}
	s.mu.Unlock()
	s.wg.Add(1)
	defer func() {
		s.mu.Lock()
		delete(s.active, featureID)
		s.mu.Unlock()
		s.wg.Done()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
	}

	if err := s.run(ctx, featureID); err != nil {
		return nil, err
	}
	return s.store.GetFeature(ctx, featureID)
}

// Running reports whether a run is in flight for the feature.
func (s *PipelineService) Running(featureID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[featureID]
	return ok
}

// Shutdown waits for in-flight runs to finish.
func (s *PipelineService) Shutdown() {
	s.wg.Wait()
}

// run executes pipeline steps until a human gate or terminal status.
// The inter-step sleep and the store calls are the cancellation
// checkpoints: the feature is re-read before every step and again
// mid-step, so a concurrent cancel or manual transition stops the run
// without rollback.
func (s *PipelineService) run(ctx context.Context, featureID string) error {
	ctx, span := otel.StartPipelineSpan(ctx, featureID)
	defer span.End()

	for {
		f, err := s.store.GetFeature(ctx, featureID)
		if err != nil {
			return err
		}
		if !feature.Automatable(f.Status) {
			// Human gate or terminal status: attention flags were set
			// when the status landed; nothing left to automate.
			break
		}

		if err := s.step(ctx, f); err != nil {
			s.flagAttention(ctx, featureID)
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.RunsCompleted.Add(ctx, 1)
	}
	slog.Info("pipeline run finished", "feature_id", featureID)
	return nil
}

// step works one automatable phase to completion and advances the status.
func (s *PipelineService) step(ctx context.Context, f *feature.Feature) error {
	phase := f.Status
	agent, _ := feature.AgentForPhase(phase)

	ctx, span := otel.StartStepSpan(ctx, f.ID, string(phase), agent)
	defer span.End()

	if f.CurrentAgent != agent || f.NeedsAttention {
		f.CurrentAgent = agent
		f.NeedsAttention = false
		if err := s.store.UpdateFeatureState(ctx, f); err != nil {
			return err
		}
		s.features.announceStatus(ctx, f)
	}

	p, err := s.packets.Create(ctx, packet.CreateRequest{
		FeatureID: f.ID,
		Phase:     phase,
		AgentID:   agent,
		AgentType: packet.AgentTypeAI,
	})
	if err != nil {
		return fmt.Errorf("open packet for %s: %w", phase, err)
	}

	if err := s.sleep(ctx, s.delay); err != nil {
		if skipErr := s.packets.skip(ctx, p); skipErr != nil {
			slog.Error("packet skip failed", "packet_id", p.ID, "error", skipErr)
		}
		return err
	}

	// Re-read: another writer (cancel, manual transition) may have moved
	// the feature while the step was in flight. If so, close the packet
	// as skipped and stop without touching the log.
	cur, err := s.store.GetFeature(ctx, f.ID)
	if err != nil {
		return err
	}
	if cur.Status != phase {
		slog.Info("pipeline step preempted", "feature_id", f.ID,
			"expected", phase, "actual", cur.Status)
		return s.packets.skip(ctx, p)
	}

	entry := feature.LogEntry{
		Timestamp: s.now().UTC(),
		Agent:     agent,
		Stage:     string(phase),
		Verdict:   feature.VerdictComplete,
	}
	if err := s.features.appendEntry(ctx, cur.ID, entry); err != nil {
		return err
	}
	cur.PipelineLog = append(cur.PipelineLog, entry)

	if _, err := s.packets.Complete(ctx, p.ID, packet.Output{
		Summary: fmt.Sprintf("%s completed by %s", phase, agent),
	}); err != nil {
		return err
	}

	next, ok := feature.NextPhase(phase)
	if !ok {
		return fmt.Errorf("no forward transition out of %s", phase)
	}
	if err := feature.Apply(cur, next); err != nil {
		return err
	}
	s.features.reconcile(cur)
	s.features.resetCycleState(cur, phase)
	if err := s.store.UpdateFeatureState(ctx, cur); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.Add(ctx, 1)
	}
	s.features.announceStatus(ctx, cur)
	return nil
}

// flagAttention marks a feature for human follow-up after a failed run.
// Best effort; the run error is already being surfaced.
func (s *PipelineService) flagAttention(ctx context.Context, featureID string) {
	f, err := s.store.GetFeature(ctx, featureID)
	if err != nil {
		return
	}
	if f.NeedsAttention {
		return
	}
	f.NeedsAttention = true
	if err := s.store.UpdateFeatureState(ctx, f); err != nil {
		slog.Error("attention flag update failed", "feature_id", featureID, "error", err)
		return
	}
	s.features.announceStatus(ctx, f)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
