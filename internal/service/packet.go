package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/FeatureForge/internal/adapter/otel"
	"github.com/Strob0t/FeatureForge/internal/adapter/ws"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
	"github.com/Strob0t/FeatureForge/internal/port/broadcast"
	"github.com/Strob0t/FeatureForge/internal/port/cache"
	"github.com/Strob0t/FeatureForge/internal/port/database"
	"github.com/Strob0t/FeatureForge/internal/port/messagequeue"
)

// VersionDiffPayload is the response body for a packet diff read.
// PreviousVersion is 0 for the first version of a (feature, phase) pair.
type VersionDiffPayload struct {
	PacketID        string              `json:"packetId"`
	FeatureID       string              `json:"featureId"`
	Phase           string              `json:"phase"`
	CurrentVersion  int                 `json:"currentVersion"`
	PreviousVersion int                 `json:"previousVersion"`
	Diff            *packet.VersionDiff `json:"diff"`
}

// PacketService handles handoff packet versioning, completion diffs and
// the cached diff read path.
type PacketService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	cache   cache.Cache
	metrics *otel.Metrics
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

// NewPacketService creates a new PacketService. cache and metrics may be nil.
func NewPacketService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, c cache.Cache, metrics *otel.Metrics, ttl time.Duration) *PacketService {
	return &PacketService{
		store:   store,
		queue:   queue,
		hub:     hub,
		cache:   c,
		metrics: metrics,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create opens the next packet version for (feature, phase). The version
// number is assigned atomically by the store; a concurrent open packet
// for the same pair surfaces as domain.ErrConflict.
func (s *PacketService) Create(ctx context.Context, req packet.CreateRequest) (*packet.HandoffPacket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetFeature(ctx, req.FeatureID); err != nil {
		return nil, err
	}

	p, err := s.store.CreatePacketVersion(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PacketsCreated.Add(ctx, 1)
	}

	s.publishJSON(ctx, messagequeue.SubjectPacketCreated, p)
	s.announce(ctx, p)
	return p, nil
}

// Get returns a packet by ID.
func (s *PacketService) Get(ctx context.Context, id string) (*packet.HandoffPacket, error) {
	return s.store.GetPacket(ctx, id)
}

// Complete closes an in-progress packet with its output, computing the
// structural diff against the previous version of the same (feature, phase).
func (s *PacketService) Complete(ctx context.Context, id string, out packet.Output) (*packet.HandoffPacket, error) {
	p, err := s.store.GetPacket(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != packet.StatusInProgress {
		return nil, fmt.Errorf("%w: packet is %s, not in_progress", domain.ErrConflict, p.Status)
	}

	p.OutputSummary = out.Summary
	p.OutputArtifacts = out.Artifacts
	p.OutputDecisions = out.Decisions

	var prev *packet.HandoffPacket
	if p.PreviousVersionID != "" {
		prev, err = s.store.GetPacket(ctx, p.PreviousVersionID)
		if err != nil {
			return nil, fmt.Errorf("load previous version: %w", err)
		}
	}

	diffCtx, span := otel.StartDiffSpan(ctx, p.ID, p.Version)
	start := time.Now()
	p.DiffFromPrevious = packet.ComputeDiff(prev, p)
	if s.metrics != nil {
		s.metrics.DiffDuration.Record(diffCtx, time.Since(start).Seconds())
	}
	span.End()

	completed := s.now().UTC()
	p.CompletedAt = &completed
	ms := completed.Sub(p.StartedAt).Milliseconds()
	p.DurationMs = &ms
	p.Status = packet.StatusCompleted

	if err := s.store.UpdatePacket(ctx, p); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PacketsCompleted.Add(ctx, 1)
	}

	s.publishJSON(ctx, messagequeue.SubjectPacketComplete, p)
	s.announce(ctx, p)
	return p, nil
}

// Reject closes an in-progress packet as rejected with a reason. No diff
// is computed; rejected output never becomes a baseline.
func (s *PacketService) Reject(ctx context.Context, id, reason string) (*packet.HandoffPacket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}

	p, err := s.store.GetPacket(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != packet.StatusInProgress {
		return nil, fmt.Errorf("%w: packet is %s, not in_progress", domain.ErrConflict, p.Status)
	}

	completed := s.now().UTC()
	p.CompletedAt = &completed
	ms := completed.Sub(p.StartedAt).Milliseconds()
	p.DurationMs = &ms
	p.Status = packet.StatusRejected
	p.RejectedReason = reason

	if err := s.store.UpdatePacket(ctx, p); err != nil {
		return nil, err
	}

	s.publishJSON(ctx, messagequeue.SubjectPacketRejected, p)
	s.announce(ctx, p)
	return p, nil
}

// skip closes an in-progress packet as skipped. Used by the pipeline
// runner when it observes a concurrent status change mid-step.
func (s *PacketService) skip(ctx context.Context, p *packet.HandoffPacket) error {
	if p.Status != packet.StatusInProgress {
		return nil
	}
	completed := s.now().UTC()
	p.CompletedAt = &completed
	ms := completed.Sub(p.StartedAt).Milliseconds()
	p.DurationMs = &ms
	p.Status = packet.StatusSkipped

	if err := s.store.UpdatePacket(ctx, p); err != nil {
		return err
	}
	s.announce(ctx, p)
	return nil
}

// Versions returns all packet versions for (feature, phase), oldest first.
func (s *PacketService) Versions(ctx context.Context, featureID string, phase feature.Status) ([]packet.HandoffPacket, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, phase)
	}
	if _, err := s.store.GetFeature(ctx, featureID); err != nil {
		return nil, err
	}
	return s.store.ListPacketVersions(ctx, featureID, phase)
}

// Latest returns the highest-numbered packet version for (feature, phase).
func (s *PacketService) Latest(ctx context.Context, featureID string, phase feature.Status) (*packet.HandoffPacket, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, phase)
	}
	return s.store.LatestPacket(ctx, featureID, phase)
}

// Diff returns the diff payload for a packet. Completed packets are
// immutable, so their payloads are cached; concurrent cold reads for the
// same packet are collapsed through singleflight.
func (s *PacketService) Diff(ctx context.Context, id string) (*VersionDiffPayload, error) {
	key := "packet.diff:" + id

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var payload VersionDiffPayload
			if err := json.Unmarshal(data, &payload); err == nil {
				return &payload, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.buildDiff(ctx, key, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*VersionDiffPayload), nil
}

func (s *PacketService) buildDiff(ctx context.Context, key, id string) (*VersionDiffPayload, error) {
	p, err := s.store.GetPacket(ctx, id)
	if err != nil {
		return nil, err
	}

	payload := &VersionDiffPayload{
		PacketID:       p.ID,
		FeatureID:      p.FeatureID,
		Phase:          string(p.Phase),
		CurrentVersion: p.Version,
		Diff:           p.DiffFromPrevious,
	}

	var prev *packet.HandoffPacket
	if p.PreviousVersionID != "" {
		prev, err = s.store.GetPacket(ctx, p.PreviousVersionID)
		if err != nil {
			return nil, fmt.Errorf("load previous version: %w", err)
		}
		payload.PreviousVersion = prev.Version
	}

	// Open or rejected packets carry no stored diff; compute one on the
	// fly against the previous version without persisting it.
	if payload.Diff == nil {
		diffCtx, span := otel.StartDiffSpan(ctx, p.ID, p.Version)
		start := time.Now()
		payload.Diff = packet.ComputeDiff(prev, p)
		if s.metrics != nil {
			s.metrics.DiffDuration.Record(diffCtx, time.Since(start).Seconds())
		}
		span.End()
	}

	if s.cache != nil && p.Status == packet.StatusCompleted {
		if data, err := json.Marshal(payload); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				slog.Debug("diff cache set failed", "packet_id", id, "error", err)
			}
		}
	}
	return payload, nil
}

func (s *PacketService) announce(ctx context.Context, p *packet.HandoffPacket) {
	s.hub.BroadcastEvent(ctx, ws.EventPacketStatus, ws.PacketStatusEvent{
		PacketID:  p.ID,
		FeatureID: p.FeatureID,
		Phase:     string(p.Phase),
		Version:   p.Version,
		Status:    string(p.Status),
	})
}

func (s *PacketService) publishJSON(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("queue payload marshal failed", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("queue publish failed", "subject", subject, "error", err)
	}
}
