package coder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

func TestListWorkspacesPaginates(t *testing.T) {
	total := workspacePageSize + 7
	var gotToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/workspaces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotToken = r.Header.Get("Coder-Session-Token")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var page []types.Workspace
		for i := offset; i < total && i < offset+limit; i++ {
			page = append(page, types.Workspace{ID: "ws-" + strconv.Itoa(i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"workspaces": page, "count": total})
	}))
	defer ts.Close()

	c := New(ts.URL, "secret-token")
	ws, err := c.ListWorkspaces(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ws) != total {
		t.Fatalf("got %d workspaces, want %d", len(ws), total)
	}
	if gotToken != "secret-token" {
		t.Fatalf("session token header %q", gotToken)
	}
}

func TestListBuilds(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/workspaces/ws-1/builds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]types.Build{
			{ID: "b-2", Transition: "start"},
			{ID: "b-1", Transition: "stop"},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	builds, err := c.ListBuilds(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("builds: %v", err)
	}
	if len(builds) != 2 || builds[0].ID != "b-2" {
		t.Fatalf("got %#v", builds)
	}
}

func TestUserActivityHours(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_time") == "" || r.URL.Query().Get("end_time") == "" {
			t.Errorf("missing time window: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"report": map[string]any{
				"users": []map[string]any{
					{"username": "alice", "seconds": 7200},
					{"username": "bob", "seconds": 1800},
				},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	hours, err := c.UserActivityHours(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if hours["alice"] != 2 {
		t.Fatalf("alice hours %v, want 2", hours["alice"])
	}
	if hours["bob"] != 0.5 {
		t.Fatalf("bob hours %v, want 0.5", hours["bob"])
	}
}

func TestGetRetriesOn5xx(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]types.Template{{ID: "tpl-1", Name: "base"}})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	templates, err := c.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "base" {
		t.Fatalf("got %#v", templates)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGetDoesNotRetryOn4xx(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := New(ts.URL, "bad-token")
	if _, err := c.ListTemplates(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
