package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Features ---

const featureColumns = `id, title, description, status, current_agent, revision_count, needs_attention, approved_by, version, created_at, updated_at`

func scanFeature(row scannable) (feature.Feature, error) {
	var f feature.Feature
	err := row.Scan(
		&f.ID, &f.Title, &f.Description, &f.Status, &f.CurrentAgent,
		&f.RevisionCount, &f.NeedsAttention, &f.ApprovedBy,
		&f.Version, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func (s *Store) ListFeatures(ctx context.Context) ([]feature.Feature, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM features ORDER BY created_at DESC`, featureColumns))
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var features []feature.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (s *Store) GetFeature(ctx context.Context, id string) (*feature.Feature, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM features WHERE id = $1`, featureColumns), id)

	f, err := scanFeature(row)
	if err != nil {
		return nil, notFoundWrap(err, "get feature %s", id)
	}

	f.PipelineLog, err = s.ListLogEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) CreateFeature(ctx context.Context, req feature.CreateRequest) (*feature.Feature, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO features (title, description) VALUES ($1, $2) RETURNING %s`, featureColumns),
		req.Title, req.Description)

	f, err := scanFeature(row)
	if err != nil {
		return nil, fmt.Errorf("create feature: %w", err)
	}
	f.PipelineLog = []feature.LogEntry{}
	return &f, nil
}

// UpdateFeatureState persists the mutable pointer fields of a feature under
// an optimistic version check. The pipeline log is never written here.
func (s *Store) UpdateFeatureState(ctx context.Context, f *feature.Feature) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE features
		 SET status = $2, current_agent = $3, revision_count = $4,
		     needs_attention = $5, approved_by = $6,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $7`,
		f.ID, f.Status, f.CurrentAgent, f.RevisionCount,
		f.NeedsAttention, f.ApprovedBy, f.Version)
	if err != nil {
		return fmt.Errorf("update feature %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update feature %s: %w", f.ID, domain.ErrConflict)
	}
	f.Version++
	return nil
}

// --- Pipeline log (append-only) ---

func (s *Store) AppendLogEntry(ctx context.Context, featureID string, entry feature.LogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_log (feature_id, ts, agent, stage, verdict, issues, revision_loop)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		featureID, entry.Timestamp, entry.Agent, entry.Stage, entry.Verdict,
		pgTextArray(entry.Issues), entry.RevisionLoop)
	if err != nil {
		return fmt.Errorf("append log entry for %s: %w", featureID, err)
	}
	return nil
}

func (s *Store) ListLogEntries(ctx context.Context, featureID string) ([]feature.LogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, agent, stage, verdict, issues, revision_loop
		 FROM pipeline_log WHERE feature_id = $1 ORDER BY ts ASC, id ASC`, featureID)
	if err != nil {
		return nil, fmt.Errorf("list log entries for %s: %w", featureID, err)
	}
	defer rows.Close()

	entries := []feature.LogEntry{}
	for rows.Next() {
		var e feature.LogEntry
		if err := rows.Scan(&e.Timestamp, &e.Agent, &e.Stage, &e.Verdict, &e.Issues, &e.RevisionLoop); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
