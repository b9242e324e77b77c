//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Strob0t/FeatureForge/internal/adapter/postgres"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
)

func postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func patchJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPatch, testServer.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH %s: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func createFeature(t *testing.T, title string) feature.Feature {
	t.Helper()
	resp := postJSON(t, "/api/v1/features", map[string]string{"title": title})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create feature: expected 201, got %d", resp.StatusCode)
	}
	return decodeBody[feature.Feature](t, resp)
}

func TestFeatureCreateAndTransition(t *testing.T) {
	f := createFeature(t, "integration: transitions")

	resp := patchJSON(t, "/api/v1/features/"+f.ID, map[string]string{"status": "design_review"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[feature.Feature](t, resp)
	if got.Status != feature.StatusDesignReview {
		t.Fatalf("expected design_review, got %s", got.Status)
	}

	// Skipping a phase is rejected and leaves the row untouched.
	resp = patchJSON(t, "/api/v1/features/"+f.ID, map[string]string{"status": "qa_review"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestFeatureCancelAndRestart(t *testing.T) {
	f := createFeature(t, "integration: restart")

	for _, status := range []string{"cancelled", "planning"} {
		resp := patchJSON(t, "/api/v1/features/"+f.ID, map[string]string{"status": status})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d", status, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestFeatureOptimisticLocking(t *testing.T) {
	f := createFeature(t, "integration: stale write")

	store := postgres.NewStore(testPool)
	ctx := context.Background()

	stale, err := store.GetFeature(ctx, f.ID)
	if err != nil {
		t.Fatalf("get feature: %v", err)
	}

	fresh, _ := store.GetFeature(ctx, f.ID)
	fresh.Status = feature.StatusDesignReview
	if err := store.UpdateFeatureState(ctx, fresh); err != nil {
		t.Fatalf("first update: %v", err)
	}

	stale.Status = feature.StatusCancelled
	err = store.UpdateFeatureState(ctx, stale)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}
}

func TestRunPipelineEndToEnd(t *testing.T) {
	f := createFeature(t, "integration: full run")

	// The run executes within the request: the response is the feature as
	// it stands at the review gate.
	resp := postJSON(t, "/api/v1/features/"+f.ID+"/run-pipeline", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[feature.Feature](t, resp)
	if got.Status != feature.StatusReview {
		t.Fatalf("expected review in response, got %s", got.Status)
	}

	if !got.NeedsAttention {
		t.Fatal("expected needs_attention at review gate")
	}
	if len(got.PipelineLog) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(got.PipelineLog))
	}

	// The derived step view agrees with the log.
	r, err := http.Get(testServer.URL + "/api/v1/features/" + f.ID + "/steps")
	if err != nil {
		t.Fatalf("GET steps: %v", err)
	}
	steps := decodeBody[[]map[string]any](t, r)
	if len(steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(steps))
	}
	completed := 0
	for _, s := range steps {
		if s["stepStatus"] == "completed" {
			completed++
		}
	}
	// intake + spec + design + build + qa completed; ship pending.
	if completed != 5 {
		t.Fatalf("expected 5 completed steps, got %d", completed)
	}
}
