package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"learnhub/internal/model"
)

// fakeAPI is a minimal in-memory notification API.
type fakeAPI struct {
	mu       sync.Mutex
	rows     []model.Notification
	listHits int
	failList bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listHits++
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			return
		}
		userID := r.URL.Query().Get("userId")
		out := make([]model.Notification, 0)
		for _, n := range f.rows {
			if n.UserID == userID {
				out = append(out, n)
			}
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("POST /notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		for i := range f.rows {
			if f.rows[i].ID == id {
				f.rows[i].IsRead = true
				json.NewEncoder(w).Encode(f.rows[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "notification not found"})
	})

	mux.HandleFunc("DELETE /notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		for i := range f.rows {
			if f.rows[i].ID == id {
				deleted := f.rows[i]
				f.rows = append(f.rows[:i], f.rows[i+1:]...)
				json.NewEncoder(w).Encode(deleted)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "notification not found"})
	})

	return mux
}

func (f *fakeAPI) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listHits
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	c := New(srv.URL, zap.NewNop())
	c.SetUser("u1", "test-token")
	return c
}

func TestRefreshLoadsList(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "Welcome", Message: "Hi"},
		{ID: "n2", UserID: "u2", Title: "other user", Message: "x"},
	}}
	c := newTestClient(t, api)

	if c.State() != StateLoading {
		t.Fatalf("expected StateLoading after SetUser, got %v", c.State())
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if c.State() != StateLoaded {
		t.Fatalf("expected StateLoaded, got %v", c.State())
	}
	list := c.Notifications()
	if len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestMarkReadRefetches(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
	}}
	c := newTestClient(t, api)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before := api.hits()

	if err := c.MarkRead(context.Background(), "n1"); err != nil {
		t.Fatalf("markRead: %v", err)
	}

	if api.hits() != before+1 {
		t.Fatalf("expected a re-fetch after markRead, hits %d -> %d", before, api.hits())
	}
	list := c.Notifications()
	if len(list) != 1 || !list[0].IsRead {
		t.Fatalf("expected the refreshed list to show isRead=true, got %v", list)
	}
}

func TestRemoveRefetches(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
	}}
	c := newTestClient(t, api)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := c.Remove(context.Background(), "n1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if got := c.Notifications(); len(got) != 0 {
		t.Fatalf("expected empty list after remove, got %v", got)
	}
	if c.State() != StateLoaded {
		t.Fatalf("expected StateLoaded, got %v", c.State())
	}
}

func TestMutationErrorIsSurfaced(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	err := c.MarkRead(context.Background(), "no-such-id")
	if err == nil {
		t.Fatal("expected an error for an unknown id")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected a 404 error, got %v", err)
	}

	select {
	case <-c.Errors():
	case <-time.After(time.Second):
		t.Fatal("expected the error on the error channel")
	}
}

func TestFailedRefreshKeepsStaleList(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
	}}
	c := newTestClient(t, api)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	api.mu.Lock()
	api.failList = true
	api.mu.Unlock()

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected the refresh to fail")
	}

	// The previous list stays visible; the failure is reported, not swallowed.
	if c.State() != StateLoaded {
		t.Fatalf("expected StateLoaded with stale data, got %v", c.State())
	}
	if list := c.Notifications(); len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("expected the stale list to survive, got %v", list)
	}
	select {
	case <-c.Errors():
	case <-time.After(time.Second):
		t.Fatal("expected the error on the error channel")
	}
}

func TestSetUserClearsState(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
		{ID: "n2", UserID: "u2", Title: "t2", Message: "m"},
	}}
	c := newTestClient(t, api)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	c.SetUser("u2", "other-token")
	if c.State() != StateLoading {
		t.Fatalf("expected StateLoading after identity change, got %v", c.State())
	}
	if list := c.Notifications(); len(list) != 0 {
		t.Fatalf("expected the previous user's list to be cleared, got %v", list)
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	list := c.Notifications()
	if len(list) != 1 || list[0].ID != "n2" {
		t.Fatalf("expected u2's list, got %v", list)
	}
}

func TestBackgroundPolling(t *testing.T) {
	api := &fakeAPI{rows: []model.Notification{
		{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
	}}
	c := newTestClient(t, api)

	c.Start(20 * time.Millisecond)
	defer c.Stop()

	deadline := time.After(2 * time.Second)
	for api.hits() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for polls, hits=%d", api.hits())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if c.State() != StateLoaded {
		t.Fatalf("expected StateLoaded after polling, got %v", c.State())
	}
}
