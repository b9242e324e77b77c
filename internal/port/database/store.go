// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
)

// Store is the port interface for database operations.
//
// The feature row and its pipeline log are the only shared mutable state.
// Log entries are append-only; status updates go through optimistic
// version checks so concurrent writers surface as domain.ErrConflict.
type Store interface {
	// Features
	ListFeatures(ctx context.Context) ([]feature.Feature, error)
	GetFeature(ctx context.Context, id string) (*feature.Feature, error)
	CreateFeature(ctx context.Context, req feature.CreateRequest) (*feature.Feature, error)

	// UpdateFeatureState persists status, current_agent, revision_count,
	// needs_attention and approved_by under an optimistic version check.
	// Returns domain.ErrConflict when the row version moved.
	UpdateFeatureState(ctx context.Context, f *feature.Feature) error

	// AppendLogEntry appends one immutable entry to the feature's pipeline log.
	AppendLogEntry(ctx context.Context, featureID string, entry feature.LogEntry) error

	// ListLogEntries returns the pipeline log ordered by timestamp ascending.
	ListLogEntries(ctx context.Context, featureID string) ([]feature.LogEntry, error)

	// Handoff packets
	//
	// CreatePacketVersion atomically assigns the next version number for
	// (feature_id, phase) and fails with domain.ErrConflict when another
	// packet for the pair is still in_progress.
	CreatePacketVersion(ctx context.Context, req packet.CreateRequest) (*packet.HandoffPacket, error)
	GetPacket(ctx context.Context, id string) (*packet.HandoffPacket, error)
	UpdatePacket(ctx context.Context, p *packet.HandoffPacket) error
	ListPacketVersions(ctx context.Context, featureID string, phase feature.Status) ([]packet.HandoffPacket, error)
	LatestPacket(ctx context.Context, featureID string, phase feature.Status) (*packet.HandoffPacket, error)
}
