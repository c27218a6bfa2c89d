package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SebastienMelki/keyportal/internal/events"
)

// mockPublisher is a test double for EventPublisher.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.KeyEvent
}

func (m *mockPublisher) PublishKeyEvent(_ context.Context, event events.KeyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func TestModule_ResolveAgainstUpstream(t *testing.T) {
	var creates int
	var mu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if creates > 0 {
				_, _ = io.WriteString(w, `[{"key":"k1","customAccountId":"abc123"}]`)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			creates++
			_, _ = io.WriteString(w, `{"key":"k1","customAccountId":"abc123"}`)
		}
	}))
	defer upstream.Close()

	pub := &mockPublisher{}
	m := New(Config{BaseURL: upstream.URL, ProjectID: "proj", AccessKey: "secret", Timeout: time.Second}, pub, nil, nil)

	mux := http.NewServeMux()
	m.RegisterRoutes(mux)

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{"data":{"issuer":"abc123","email":"a@x.com"}}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var record Record
		if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
			t.Fatalf("failed to decode record: %v", err)
		}
		if record.Key != "k1" {
			t.Errorf("Key = %q, want k1", record.Key)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if creates != 1 {
		t.Errorf("creates = %d, want 1", creates)
	}
	if len(pub.events) != 2 || pub.events[0].Type != events.TypeCreated || pub.events[1].Type != events.TypeResolved {
		t.Errorf("events = %+v", pub.events)
	}
}

// stubDirectory always fails lookup.
type stubDirectory struct{ err error }

func (s stubDirectory) Lookup(context.Context, string) ([]Record, error) { return nil, s.err }
func (s stubDirectory) Create(context.Context, string, string) (Record, error) {
	return Record{}, errors.New("create must not be called")
}

func TestModule_RegisterRoutes(t *testing.T) {
	m := NewWithDirectory(stubDirectory{err: ErrUpstream}, "proj", nil, nil, nil)
	mux := http.NewServeMux()
	m.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{"data":{"issuer":"abc123"}}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["code"] != "upstream" {
		t.Errorf("code = %q, want upstream", body["code"])
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestConfig_Missing(t *testing.T) {
	if got := (Config{ProjectID: "p", AccessKey: "k"}).Missing(); len(got) != 0 {
		t.Errorf("Missing() = %v, want none", got)
	}
	got := Config{}.Missing()
	if len(got) != 2 || got[0] != "AUTHAPI_PROJECT_ID" || got[1] != "AUTHAPI_ACCESS_KEY" {
		t.Errorf("Missing() = %v", got)
	}
}
