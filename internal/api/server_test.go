package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/consumer"
	"github.com/Avataren/slidekiosk/internal/preview"
	"github.com/Avataren/slidekiosk/internal/render"
	"github.com/Avataren/slidekiosk/internal/scheduler"
)

func newTestServer(t *testing.T) (*httptest.Server, *scheduler.Scheduler) {
	t.Helper()

	br := bridge.New(bridge.Capabilities{Shared: true, Copied: true}, 8)
	t.Cleanup(br.Close)

	cons := consumer.New(br, 0, 1)
	cons.SetReady(true)

	sched := scheduler.New(br, 10, time.Second)
	t.Cleanup(sched.Teardown)
	for i := 0; i < 2; i++ {
		sched.Attach(i, render.NewSynthetic("https://example.com", 2, 2), "https://example.com")
	}

	streamer := preview.NewStreamer(cons, 10, 640)
	srv := NewServer(sched, cons, br, streamer)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sched
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var status struct {
		Surfaces  []scheduler.SurfaceStatus `json:"surfaces"`
		Transport string                    `json:"transport"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.Surfaces) != 2 {
		t.Errorf("expected 2 surfaces, got %d", len(status.Surfaces))
	}
	if status.Transport != "shared" {
		t.Errorf("transport %q, want shared", status.Transport)
	}
}

func TestEnableDisableSurface(t *testing.T) {
	ts, sched := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/surfaces/0/enable", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status %d", resp.StatusCode)
	}

	if status := sched.Surfaces(); !status[0].Painting {
		t.Error("surface 0 not painting after enable")
	}

	resp, err = http.Post(ts.URL+"/api/surfaces/0/disable", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if status := sched.Surfaces(); status[0].Painting {
		t.Error("surface 0 still painting after disable")
	}
}

func TestSetActiveSurfaces(t *testing.T) {
	ts, sched := newTestServer(t)

	body, _ := json.Marshal(map[string][]int{"indices": {1}})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/surfaces/active", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set active status %d", resp.StatusCode)
	}

	status := sched.Surfaces()
	if status[0].Painting || !status[1].Painting {
		t.Errorf("active set not applied: %+v", status)
	}
}

func TestBadSurfaceIndexRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/surfaces/not-a-number/enable", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad index, got %d", resp.StatusCode)
	}
}

func TestAbsentSurfaceOpsReturnOK(t *testing.T) {
	ts, _ := newTestServer(t)

	// Control operations racing teardown are silent no-ops, so the
	// API reports success for absent indices too.
	resp, err := http.Post(ts.URL+"/api/surfaces/99/enable", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for absent surface, got %d", resp.StatusCode)
	}
}
