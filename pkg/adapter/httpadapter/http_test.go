package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/larouxn/flipper/pkg/flipper"
)

func TestAdapter_Features(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/features" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(featuresResponse{Features: []string{"a", "b"}})
	}))
	defer server.Close()

	a := New(server.URL)
	names, err := a.Features(context.Background())
	if err != nil {
		t.Fatalf("Features() error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("Features() returned %d entries, want 2", len(names))
	}
	if _, ok := names["a"]; !ok {
		t.Error("Features() missing \"a\"")
	}
}

func TestAdapter_Get(t *testing.T) {
	on := "true"
	want := flipper.GateValues{Boolean: &on, Actors: map[string]struct{}{}, Groups: map[string]struct{}{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/features/checkout" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	a := New(server.URL)
	got, err := a.Get(context.Background(), "checkout")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Boolean == nil || *got.Boolean != "true" {
		t.Errorf("Get() Boolean = %v, want true", got.Boolean)
	}
}

func TestAdapter_EnableSendsGateAndValue(t *testing.T) {
	var received gateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/features/checkout/enable" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	a := New(server.URL)
	if err := a.Enable(context.Background(), "checkout", flipper.GateActor, "actor-1"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if received.Gate != flipper.GateActor {
		t.Errorf("received.Gate = %q, want %q", received.Gate, flipper.GateActor)
	}
	if received.Value != "actor-1" {
		t.Errorf("received.Value = %v, want %q", received.Value, "actor-1")
	}
}

func TestAdapter_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	a := New(server.URL)
	if err := a.Add(context.Background(), "f"); err == nil {
		t.Fatal("expected an error on a 500 response")
	}
}

func TestAdapter_Ping(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := New(server.URL)
	if err := a.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if !called {
		t.Error("Ping() should have hit the /health endpoint")
	}
}

func TestAdapter_WithHeaderIsSentOnEveryRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want %q", r.Header.Get("Authorization"), "Bearer test-token")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := New(server.URL, WithHeader("Authorization", "Bearer test-token"))
	if err := a.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}
