package remote_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/dsflow/pkg/adapters/remote"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService keeps per-session variables so isolation can be observed.
type fakeService struct {
	mu       sync.Mutex
	next     int
	sessions map[string][]string
	auth     []string
	// received holds every code body as sent, frame included.
	received []string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	f := &fakeService{sessions: map[string][]string{}}
	r := chi.NewRouter()
	r.Post("/sessions", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.next++
		id := fmt.Sprintf("s%d", f.next)
		f.sessions[id] = nil
		f.auth = append(f.auth, req.Header.Get("Authorization"))
		f.mu.Unlock()
		json.NewEncoder(w).Encode(remote.CreateSessionResponse{SessionID: id})
	})
	r.Post("/sessions/{id}/execute", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body remote.ExecuteRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		code := strings.TrimPrefix(body.Code, domain.PlotPreamble+"\n")
		code = strings.TrimSuffix(code, "\n"+domain.PlotEpilogue+"\n")

		f.mu.Lock()
		f.received = append(f.received, body.Code)
		history, ok := f.sessions[id]
		if ok {
			f.sessions[id] = append(history, code)
		}
		f.mu.Unlock()
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		var out remote.ExecuteResponse
		switch {
		case strings.HasPrefix(code, "raise"):
			out = remote.ExecuteResponse{ExitCode: 1, Error: "Traceback (most recent call last):\nValueError: boom"}
		case code == "sleep":
			out = remote.ExecuteResponse{TimedOut: true, ExitCode: -1}
		case code == "hang":
			select {
			case <-req.Context().Done():
				return
			case <-time.After(3 * time.Second):
			}
			out = remote.ExecuteResponse{Stdout: "late"}
		default:
			out = remote.ExecuteResponse{
				Stdout:    fmt.Sprintf("%d cells", len(history)+1),
				Artifacts: []domain.Artifact{{Kind: "text/plain", Text: "DataFrame(3x2)"}},
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		delete(f.sessions, chi.URLParam(req, "id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestSession_ExecuteAndClose(t *testing.T) {
	f, srv := newFakeService(t)
	p := remote.NewProvider(srv.URL, remote.WithAPIKey("secret"))
	ctx := context.Background()

	s, err := p.Open(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.SandboxHandle{Backend: remote.Backend, SessionID: "s1"}, s.Handle())

	r := s.Execute(ctx, "x = 1")
	assert.False(t, r.Failed())
	assert.Equal(t, "1 cells", r.Stdout)
	require.Len(t, r.Artifacts, 1)
	assert.Equal(t, "DataFrame(3x2)", r.Artifacts[0].Text)

	assert.Equal(t, "2 cells", s.Execute(ctx, "print(x)").Stdout)

	require.NoError(t, s.Close(ctx))
	assert.Empty(t, f.sessions)
	assert.Equal(t, []string{"Bearer secret"}, f.auth)
	assert.Equal(t, []string{domain.HeadlessPlotting("x = 1"), domain.HeadlessPlotting("print(x)")}, f.received)
}

func TestSession_EnforcesTimeoutLocally(t *testing.T) {
	_, srv := newFakeService(t)
	p := remote.NewProvider(srv.URL,
		remote.WithTimeout(200*time.Millisecond),
		remote.WithTimeoutGrace(100*time.Millisecond),
	)
	ctx := context.Background()

	s, err := p.Open(ctx, "run-1")
	require.NoError(t, err)

	start := time.Now()
	r := s.Execute(ctx, "hang")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, r.TimedOut)
	assert.True(t, r.Failed())
	assert.Equal(t, 200*time.Millisecond, r.Timeout)
	assert.Empty(t, r.Stdout)
}

func TestSession_RunsAreIsolated(t *testing.T) {
	_, srv := newFakeService(t)
	p := remote.NewProvider(srv.URL)
	ctx := context.Background()

	a, err := p.Open(ctx, "run-a")
	require.NoError(t, err)
	b, err := p.Open(ctx, "run-b")
	require.NoError(t, err)

	a.Execute(ctx, "x = 1")
	a.Execute(ctx, "y = 2")

	assert.NotEqual(t, a.Handle().SessionID, b.Handle().SessionID)
	assert.Equal(t, "1 cells", b.Execute(ctx, "x = 3").Stdout)
}

func TestSession_FailuresAreData(t *testing.T) {
	_, srv := newFakeService(t)
	p := remote.NewProvider(srv.URL, remote.WithTimeout(5*time.Second))
	ctx := context.Background()

	s, err := p.Open(ctx, "run-1")
	require.NoError(t, err)

	r := s.Execute(ctx, "raise ValueError('boom')")
	assert.True(t, r.Failed())
	assert.Contains(t, r.Failure(), "ValueError: boom")

	r = s.Execute(ctx, "sleep")
	assert.True(t, r.TimedOut)
	assert.Equal(t, 5*time.Second, r.Timeout)

	require.NoError(t, s.Close(ctx))
	r = s.Execute(ctx, "x = 1")
	assert.True(t, r.Failed())
	assert.Contains(t, r.Err, "status 404")
}

func TestProvider_OpenFailsWhenServiceDown(t *testing.T) {
	_, srv := newFakeService(t)
	srv.Close()

	_, err := remote.NewProvider(srv.URL).Open(context.Background(), "run-1")
	assert.Error(t, err)
}
