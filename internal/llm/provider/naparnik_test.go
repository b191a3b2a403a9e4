package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream mimics the conversation API: one create endpoint and one
// message endpoint per conversation.
type fakeUpstream struct {
	creates       atomic.Int32
	createStatus  int
	createBody    string
	createDelay   time.Duration
	messageStatus int
	messageBody   string
	messageDelay  time.Duration

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		createStatus:  http.StatusOK,
		messageStatus: http.StatusOK,
		messageBody: "data: {\"role\":\"assistant\",\"content_delta\":{\"content\":\"Hel\"}}\n\n" +
			"data: {\"role\":\"assistant\",\"content_delta\":{\"content\":\"lo\"}}\n\n" +
			"data: {\"role\":\"assistant\",\"finished\":true}\n\n",
	}
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	createStatus, createBody, createDelay := f.createStatus, f.createBody, f.createDelay
	messageStatus, messageBody, messageDelay := f.messageStatus, f.messageBody, f.messageDelay
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/chat_api/v1/conversations/":
		n := f.creates.Add(1)
		time.Sleep(createDelay)
		w.WriteHeader(createStatus)
		if createBody != "" {
			io.WriteString(w, createBody)
			return
		}
		fmt.Fprintf(w, `{"uuid":"conv-%d"}`, n)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
		time.Sleep(messageDelay)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(messageStatus)
		io.WriteString(w, messageBody)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeUpstream) update(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeUpstream) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestClient(t *testing.T, upstream *fakeUpstream, opts ...NaparnikOption) (*NaparnikClient, *session.Manager) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	sessions := session.NewManager(nil)
	t.Cleanup(sessions.Shutdown)
	opts = append([]NaparnikOption{WithBaseURL(srv.URL + "/"), WithToken("secret-token")}, opts...)
	return NewNaparnikClient(sessions, opts...), sessions
}

func TestAsk(t *testing.T) {
	t.Parallel()
	upstream := newFakeUpstream()
	client, sessions := newTestClient(t, upstream)

	answer, err := client.Ask(t.Context(), "How do I create a catalog?", false)
	require.NoError(t, err)
	assert.Equal(t, "Hello", answer)
	assert.Equal(t, session.Handle("conv-1"), sessions.Current())

	reqs := upstream.recorded()
	require.Len(t, reqs, 2)

	create := reqs[0]
	assert.Equal(t, "custom", create.Body["tool_name"])
	assert.Equal(t, "russian", create.Body["ui_language"])
	assert.Equal(t, "", create.Body["programming_language"])
	assert.Equal(t, "", create.Body["script_language"])
	assert.Contains(t, create.Header, "Session-Id")

	send := reqs[1]
	assert.Equal(t, "/chat_api/v1/conversations/conv-1/messages", send.Path)
	assert.Equal(t, "text/event-stream", send.Header.Get("Accept"))
	assert.Nil(t, send.Body["parent_uuid"])
	assert.Contains(t, send.Body, "parent_uuid")
	assert.Equal(t, map[string]any{"instruction": "How do I create a catalog?"}, send.Body["tool_content"])

	for _, r := range reqs {
		assert.Equal(t, "secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "secret-token", r.Header.Get("X-API-Key"))
		assert.Equal(t, "secret-token", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "application/json; charset=utf-8", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Origin"))
		assert.True(t, strings.HasSuffix(r.Header.Get("Referer"), "/chat/"))
	}
}

func TestAskReusesSession(t *testing.T) {
	t.Parallel()
	upstream := newFakeUpstream()
	client, sessions := newTestClient(t, upstream)

	_, err := client.Ask(t.Context(), "first", false)
	require.NoError(t, err)
	_, err = client.Ask(t.Context(), "second", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), upstream.creates.Load())

	_, err = client.Ask(t.Context(), "third", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.creates.Load())
	assert.Equal(t, session.Handle("conv-2"), sessions.Current())
}

func TestAskHTTPErrorKeepsSession(t *testing.T) {
	t.Parallel()
	upstream := newFakeUpstream()
	client, sessions := newTestClient(t, upstream)

	_, err := client.Ask(t.Context(), "warm up", false)
	require.NoError(t, err)

	upstream.update(func(f *fakeUpstream) {
		f.messageStatus = http.StatusInternalServerError
		f.messageBody = strings.Repeat("e", 2*maxExcerptSize)
	})

	_, err = client.Ask(t.Context(), "fails", false)
	var httpErr *UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Len(t, httpErr.Excerpt, maxExcerptSize)
	assert.Equal(t, session.Handle("conv-1"), sessions.Current())
	assert.Equal(t, int32(1), upstream.creates.Load())
}

func TestEnsureSessionFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "non-success status", status: http.StatusUnauthorized, body: `{"detail":"bad token"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing identifier", status: http.StatusOK, body: `{"id":"wrong-field"}`},
		{name: "invalid json", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			upstream := newFakeUpstream()
			upstream.createStatus = tt.status
			upstream.createBody = tt.body
			client, sessions := newTestClient(t, upstream)

			_, err := client.Ask(t.Context(), "question", false)
			var createErr *SessionCreationError
			require.ErrorAs(t, err, &createErr)
			assert.Equal(t, tt.wantStatus, createErr.Status)
			assert.Empty(t, sessions.Current())
		})
	}
}

func TestAskTimeout(t *testing.T) {
	t.Parallel()

	t.Run("message send", func(t *testing.T) {
		t.Parallel()
		upstream := newFakeUpstream()
		upstream.messageDelay = 500 * time.Millisecond
		client, sessions := newTestClient(t, upstream, WithTimeout(50*time.Millisecond))

		_, err := client.Ask(t.Context(), "slow", false)
		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.Equal(t, session.Handle("conv-1"), sessions.Current())
	})

	t.Run("session create", func(t *testing.T) {
		t.Parallel()
		upstream := newFakeUpstream()
		upstream.createDelay = 500 * time.Millisecond
		client, sessions := newTestClient(t, upstream, WithTimeout(50*time.Millisecond))

		_, err := client.Ask(t.Context(), "slow", false)
		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		var createErr *SessionCreationError
		assert.ErrorAs(t, err, &createErr)
		assert.Empty(t, sessions.Current())
	})
}

func TestAskNoResponse(t *testing.T) {
	t.Parallel()
	upstream := newFakeUpstream()
	upstream.messageBody = "data: {broken\n: ping\n"
	client, _ := newTestClient(t, upstream)

	answer, err := client.Ask(t.Context(), "anything", false)
	require.NoError(t, err)
	assert.Equal(t, NoResponse, answer)
}

func TestConcurrentEnsureSessionCreatesOnce(t *testing.T) {
	t.Parallel()
	const callers = 16

	upstream := newFakeUpstream()
	upstream.createDelay = 30 * time.Millisecond
	client, _ := newTestClient(t, upstream)

	var wg sync.WaitGroup
	handles := make([]session.Handle, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := client.EnsureSession(context.Background(), false)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), upstream.creates.Load())
	for _, h := range handles {
		assert.Equal(t, session.Handle("conv-1"), h)
	}
}

func TestEnsureSessionWaiterTimesOut(t *testing.T) {
	t.Parallel()
	upstream := newFakeUpstream()
	client, sessions := newTestClient(t, upstream, WithTimeout(50*time.Millisecond))

	release := make(chan struct{})
	started := make(chan struct{})
	go sessions.Ensure(context.Background(), false, func(context.Context) (session.Handle, error) {
		close(started)
		<-release
		return "conv-held", nil
	})
	<-started
	defer close(release)

	begin := time.Now()
	_, err := client.EnsureSession(t.Context(), false)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Less(t, time.Since(begin), time.Second)
	assert.Zero(t, upstream.creates.Load())
}
