//go:build integration

package integration_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/Strob0t/FeatureForge/internal/adapter/postgres"
	"github.com/Strob0t/FeatureForge/internal/diff"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
	"github.com/Strob0t/FeatureForge/internal/service"
)

func createPacket(t *testing.T, featureID string) packet.HandoffPacket {
	t.Helper()
	resp := postJSON(t, "/api/v1/handoff-packets", map[string]string{
		"feature_id": featureID,
		"phase":      "planning",
		"agent_id":   "IN1",
		"agent_type": "ai_agent",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create packet: expected 201, got %d", resp.StatusCode)
	}
	return decodeBody[packet.HandoffPacket](t, resp)
}

func TestPacketVersioningAndDiff(t *testing.T) {
	f := createFeature(t, "integration: packet versions")

	p1 := createPacket(t, f.ID)
	if p1.Version != 1 {
		t.Fatalf("expected version 1, got %d", p1.Version)
	}

	resp := postJSON(t, "/api/v1/handoff-packets/"+p1.ID+"/complete", map[string]any{
		"summary":   "initial plan",
		"artifacts": []map[string]string{{"title": "plan.md", "content": "poll the status endpoint"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete v1: expected 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	p2 := createPacket(t, f.ID)
	if p2.Version != 2 || p2.PreviousVersionID != p1.ID {
		t.Fatalf("unexpected v2: version=%d prev=%s", p2.Version, p2.PreviousVersionID)
	}

	resp = postJSON(t, "/api/v1/handoff-packets/"+p2.ID+"/complete", map[string]any{
		"summary":   "initial plan",
		"artifacts": []map[string]string{{"title": "plan.md", "content": "push over websockets"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete v2: expected 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	r, err := http.Get(testServer.URL + "/api/v1/handoff-packets/" + p2.ID + "/diff")
	if err != nil {
		t.Fatalf("GET diff: %v", err)
	}
	payload := decodeBody[service.VersionDiffPayload](t, r)
	if payload.CurrentVersion != 2 || payload.PreviousVersion != 1 {
		t.Fatalf("unexpected versions: %d/%d", payload.CurrentVersion, payload.PreviousVersion)
	}
	if payload.Diff == nil || len(payload.Diff.Artifacts) != 1 {
		t.Fatalf("unexpected diff payload: %+v", payload.Diff)
	}

	// The stored ops replay the old content into the new one.
	got, err := diff.Apply("poll the status endpoint", payload.Diff.Artifacts[0].ContentDiff)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	if got != "push over websockets" {
		t.Fatalf("diff round-trip produced %q", got)
	}
}

// TestPacketCreateRace verifies the database-level guarantee: two
// concurrent opens for the same (feature, phase) yield exactly one
// packet and one conflict.
func TestPacketCreateRace(t *testing.T) {
	f := createFeature(t, "integration: packet race")
	store := postgres.NewStore(testPool)
	ctx := context.Background()

	req := packet.CreateRequest{
		FeatureID: f.ID,
		Phase:     feature.StatusPlanning,
		AgentID:   "IN1",
		AgentType: packet.AgentTypeAI,
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.CreatePacketVersion(ctx, req)
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected 1 success and 1 conflict, got %d/%d", successes, conflicts)
	}

	versions, err := store.ListPacketVersions(ctx, f.ID, feature.StatusPlanning)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected exactly 1 packet row, got %d", len(versions))
	}
}
