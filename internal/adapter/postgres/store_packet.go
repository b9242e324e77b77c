package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
)

const packetColumns = `id, feature_id, phase, version, status, agent_id, agent_type,
	started_at, completed_at, duration_ms, output_summary, output_artifacts,
	output_decisions, rejected_reason, COALESCE(previous_version_id::text, ''), diff_from_previous`

func scanPacket(row scannable) (packet.HandoffPacket, error) {
	var p packet.HandoffPacket
	var artifacts []byte
	var diffJSON []byte

	err := row.Scan(
		&p.ID, &p.FeatureID, &p.Phase, &p.Version, &p.Status,
		&p.AgentID, &p.AgentType, &p.StartedAt, &p.CompletedAt, &p.DurationMs,
		&p.OutputSummary, &artifacts, &p.OutputDecisions,
		&p.RejectedReason, &p.PreviousVersionID, &diffJSON,
	)
	if err != nil {
		return p, err
	}

	if err := json.Unmarshal(artifacts, &p.OutputArtifacts); err != nil {
		return p, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	if diffJSON != nil {
		p.DiffFromPrevious = &packet.VersionDiff{}
		if err := json.Unmarshal(diffJSON, p.DiffFromPrevious); err != nil {
			return p, fmt.Errorf("unmarshal diff: %w", err)
		}
	}
	return p, nil
}

// CreatePacketVersion opens the next packet version for (feature, phase) in a
// single insert. The version number and previous-version link are computed in
// SQL, so two concurrent calls collide on the unique version index and one of
// them surfaces as domain.ErrConflict; the partial unique index on in_progress
// rejects a second open packet the same way.
func (s *Store) CreatePacketVersion(ctx context.Context, req packet.CreateRequest) (*packet.HandoffPacket, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO handoff_packets (feature_id, phase, version, status, agent_id, agent_type, previous_version_id)
		 SELECT $1, $2, COALESCE(MAX(version), 0) + 1, 'in_progress', $3, $4,
		        (SELECT id FROM handoff_packets WHERE feature_id = $1 AND phase = $2 ORDER BY version DESC LIMIT 1)
		 FROM handoff_packets WHERE feature_id = $1 AND phase = $2
		 RETURNING %s`, packetColumns),
		req.FeatureID, req.Phase, req.AgentID, req.AgentType)

	p, err := scanPacket(row)
	if err != nil {
		return nil, conflictWrap(err, "create packet version for %s/%s", req.FeatureID, req.Phase)
	}
	return &p, nil
}

func (s *Store) GetPacket(ctx context.Context, id string) (*packet.HandoffPacket, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM handoff_packets WHERE id = $1`, packetColumns), id)

	p, err := scanPacket(row)
	if err != nil {
		return nil, notFoundWrap(err, "get packet %s", id)
	}
	return &p, nil
}

// UpdatePacket persists the mutable fields of the current packet row: status,
// completion timestamps, output payload and computed diff. Version and
// identity fields are immutable once created.
func (s *Store) UpdatePacket(ctx context.Context, p *packet.HandoffPacket) error {
	artifacts, err := json.Marshal(orEmptyArtifacts(p.OutputArtifacts))
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	var diffJSON any
	if p.DiffFromPrevious != nil {
		data, err := json.Marshal(p.DiffFromPrevious)
		if err != nil {
			return fmt.Errorf("marshal diff: %w", err)
		}
		diffJSON = data
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE handoff_packets
		 SET status = $2, completed_at = $3, duration_ms = $4,
		     output_summary = $5, output_artifacts = $6, output_decisions = $7,
		     rejected_reason = $8, diff_from_previous = $9
		 WHERE id = $1`,
		p.ID, p.Status, nullTime(p.CompletedAt), p.DurationMs,
		p.OutputSummary, artifacts, pgTextArray(p.OutputDecisions),
		p.RejectedReason, diffJSON)
	if err != nil {
		return fmt.Errorf("update packet %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundWrap(pgx.ErrNoRows, "update packet %s", p.ID)
	}
	return nil
}

func (s *Store) ListPacketVersions(ctx context.Context, featureID string, phase feature.Status) ([]packet.HandoffPacket, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM handoff_packets
		 WHERE feature_id = $1 AND phase = $2 ORDER BY version ASC`, packetColumns),
		featureID, phase)
	if err != nil {
		return nil, fmt.Errorf("list packets for %s/%s: %w", featureID, phase, err)
	}
	defer rows.Close()

	var packets []packet.HandoffPacket
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan packet: %w", err)
		}
		packets = append(packets, p)
	}
	return packets, rows.Err()
}

func (s *Store) LatestPacket(ctx context.Context, featureID string, phase feature.Status) (*packet.HandoffPacket, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM handoff_packets
		 WHERE feature_id = $1 AND phase = $2 ORDER BY version DESC LIMIT 1`, packetColumns),
		featureID, phase)

	p, err := scanPacket(row)
	if err != nil {
		return nil, notFoundWrap(err, "latest packet for %s/%s", featureID, phase)
	}
	return &p, nil
}

func orEmptyArtifacts(items []packet.Artifact) []packet.Artifact {
	if items == nil {
		return []packet.Artifact{}
	}
	return items
}
