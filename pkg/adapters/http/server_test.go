package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	kioskhttp "github.com/aretw0/kiosk/pkg/adapters/http"
	"github.com/aretw0/kiosk/internal/metrics"
	"github.com/aretw0/kiosk/internal/runtime"
	"github.com/aretw0/kiosk/pkg/adapters/memory"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const branchFlow = `
storeName: Test Branch
languages:
  en:
    nodes:
      start:
        type: choice
        content: Pick one
        choices:
          - id: a
            text: A
            keywords: [alpha]
            next: done
      done:
        type: message
        content: Bye
`

type fixture struct {
	source    *memory.Source
	refresher *loader.Refresher
	server    *kioskhttp.Server
	handler   http.Handler
}

func newFixture(t *testing.T, opts ...kioskhttp.Option) *fixture {
	t.Helper()
	src := memory.NewSource(flow.FallbackSource())
	l := loader.New(src)
	r := loader.NewRefresher(l)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	s := kioskhttp.NewServer(runtime.NewEngine(), r, opts...)
	return &fixture{source: src, refresher: r, server: s, handler: s.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (f *fixture) step(t *testing.T, path string, req kioskhttp.ActionRequest) kioskhttp.ConversationResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, path, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp kioskhttp.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) start(t *testing.T, lang string) kioskhttp.ConversationResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/conversations", kioskhttp.StartRequest{Language: lang})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp kioskhttp.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "kiosk-http", info["app"])
	assert.Equal(t, flow.Fallback().StoreName, info["storeName"])
	assert.Equal(t, false, info["management"])
}

func TestGetFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/flow/en", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lf domain.LanguageFlow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lf))
	assert.Contains(t, lf.Nodes, "transaction_type")

	rec = f.do(t, http.MethodGet, "/flow/fr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown language")
}

func TestGraph(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/flow/en/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD\n"))
	assert.NotContains(t, rec.Body.String(), "classDef current")

	resp := f.start(t, "en")
	resp = f.step(t, "/conversations/advance", kioskhttp.ActionRequest{State: resp.State})
	rec = f.do(t, http.MethodPost, "/conversations/graph", kioskhttp.ActionRequest{State: resp.State})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class language_selection current")
}

func TestConversation_DepositRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.start(t, "en")
	assert.Equal(t, "start", resp.State.CurrentNodeID)
	assert.Equal(t, "start", resp.View.CurrentNode.ID)

	resp = f.step(t, "/conversations/advance", kioskhttp.ActionRequest{State: resp.State})
	assert.Equal(t, "language_selection", resp.State.CurrentNodeID)
	assert.Len(t, resp.View.Choices, 3)

	resp = f.step(t, "/conversations/select", kioskhttp.ActionRequest{State: resp.State, ChoiceID: "english"})
	assert.Equal(t, "transaction_type", resp.State.CurrentNodeID)

	resp = f.step(t, "/conversations/text", kioskhttp.ActionRequest{State: resp.State, Text: "deposit"})
	assert.Equal(t, "deposit_amount", resp.State.CurrentNodeID)

	resp = f.step(t, "/conversations/input", kioskhttp.ActionRequest{State: resp.State, Value: "30000"})
	assert.Equal(t, "deposit_confirmation", resp.State.CurrentNodeID)
	assert.Equal(t, "30000", resp.View.ConfirmValue)

	resp = f.step(t, "/conversations/confirm", kioskhttp.ActionRequest{State: resp.State, Text: "yes"})
	assert.Equal(t, "transaction_complete", resp.State.CurrentNodeID)
	assert.Equal(t, "30000", resp.State.UserInputs["depositAmount"])
}

func TestConversation_SuggestionRoundTrip(t *testing.T) {
	f := newFixture(t)
	resp := f.start(t, "en")
	resp = f.step(t, "/conversations/advance", kioskhttp.ActionRequest{State: resp.State})
	resp = f.step(t, "/conversations/select", kioskhttp.ActionRequest{State: resp.State, ChoiceID: "english"})

	resp = f.step(t, "/conversations/text", kioskhttp.ActionRequest{State: resp.State, Text: "redeposit"})
	require.NotNil(t, resp.View.PendingConfirmation, "medium confidence asks for confirmation")
	assert.Equal(t, "transaction_type", resp.State.CurrentNodeID)

	rec := f.do(t, http.MethodPost, "/conversations/suggestion", kioskhttp.ActionRequest{State: resp.State, Text: "perhaps"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	accepted := true
	resp = f.step(t, "/conversations/suggestion", kioskhttp.ActionRequest{State: resp.State, Accepted: &accepted})
	assert.Nil(t, resp.State.PendingConfirmation)
	assert.Equal(t, "deposit_amount", resp.State.CurrentNodeID)
}

func TestConversation_Rejected(t *testing.T) {
	f := newFixture(t)
	resp := f.start(t, "en")

	rec := f.do(t, http.MethodPost, "/conversations/select", kioskhttp.ActionRequest{State: resp.State, ChoiceID: "deposit"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body kioskhttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Notice)
	assert.Equal(t, domain.NoticeInvalidInput, body.Notice.Kind)
	assert.Equal(t, "That action is not available right now.", body.Notice.Message)
	require.NotNil(t, body.State)
	assert.Equal(t, "start", body.State.CurrentNodeID, "state is unchanged")
	assert.Len(t, body.View.Notices, 1)
}

func TestConversation_BadRequests(t *testing.T) {
	f := newFixture(t)
	resp := f.start(t, "en")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"Malformed Body", "/conversations/text", "{", http.StatusBadRequest},
		{"Missing State", "/conversations/text", kioskhttp.ActionRequest{Text: "hi"}, http.StatusBadRequest},
		{"Oversized Input", "/conversations/text", kioskhttp.ActionRequest{State: resp.State, Text: strings.Repeat("a", 2048)}, http.StatusBadRequest},
		{"Unknown Language", "/conversations", kioskhttp.StartRequest{Language: "fr"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestConversation_StaleStateIsReconciled(t *testing.T) {
	f := newFixture(t)
	stale := domain.NewConversation("en", "node_from_an_older_flow")

	resp := f.step(t, "/conversations/render", kioskhttp.ActionRequest{State: stale})
	assert.Equal(t, "start", resp.State.CurrentNodeID)
	require.NotEmpty(t, resp.State.History)
	assert.Equal(t, "start", resp.State.History[len(resp.State.History)-1].NodeID)
}

func TestAdmin_Disabled(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/admin/source", branchFlow)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_PutSource(t *testing.T) {
	src := memory.NewSource(flow.FallbackSource())
	l := loader.New(src)
	r := loader.NewRefresher(l)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	h := kioskhttp.NewServer(runtime.NewEngine(), r, kioskhttp.WithAdmin(l)).Handler()

	put := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/source", strings.NewReader(body)))
		return rec
	}

	rec := put("languages:\n  en:\n    nodes:\n      hello: {type: message, content: hi}\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a flow without an entry node is refused")
	assert.Equal(t, flow.Fallback().StoreName, r.Current().StoreName)

	rec = put(branchFlow)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"swapped":true`)
	assert.Equal(t, "Test Branch", r.Current().StoreName)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/flow/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"swapped":false`)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, kioskhttp.WithCORSOrigins([]string{"https://kiosk.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/conversations/text", nil)
	req.Header.Set("Origin", "https://kiosk.example")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://kiosk.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, kioskhttp.WithMetrics(metrics.NewCollector()))
	f.do(t, http.MethodGet, "/health", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kiosk_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

type event struct {
	name string
	data string
}

// readEvents parses an SSE stream into a channel.
func readEvents(body io.Reader) <-chan event {
	out := make(chan event, 8)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		var ev event
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				out <- ev
				ev = event{}
			}
		}
	}()
	return out
}

func next(t *testing.T, events <-chan event) event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return event{}
	}
}

func subscribe(t *testing.T, ctx context.Context, url string) <-chan event {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return readEvents(resp.Body)
}

func TestSubscribeEvents_Flow(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := subscribe(t, ctx, ts.URL+"/events")
	assert.Equal(t, "ping", next(t, events).name)

	require.NoError(t, f.source.Write(ctx, []byte(branchFlow)))
	swapped, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, swapped)

	ev := next(t, events)
	assert.Equal(t, "flow", ev.name)
	assert.Contains(t, ev.data, "Test Branch")
}

func TestSubscribeEvents_Conversation(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := f.start(t, "en")
	events := subscribe(t, ctx, ts.URL+"/events?conversation="+resp.State.ID+"&watch=node")
	assert.Equal(t, "ping", next(t, events).name)
	assert.Equal(t, 1, f.server.Streams.Subscribers(resp.State.ID))

	// A rejected action changes nothing, so the first diff is the advance.
	f.do(t, http.MethodPost, "/conversations/select", kioskhttp.ActionRequest{State: resp.State, ChoiceID: "x"})
	f.step(t, "/conversations/advance", kioskhttp.ActionRequest{State: resp.State})

	ev := next(t, events)
	assert.Equal(t, "diff", ev.name)
	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(ev.data), &diff))
	assert.Equal(t, resp.State.ID, diff.ConversationID)
	require.NotNil(t, diff.CurrentNodeID)
	assert.Equal(t, "language_selection", *diff.CurrentNodeID)
}

func TestStreamManager(t *testing.T) {
	sm := kioskhttp.NewStreamManager()
	ch, cancel := sm.Subscribe("c1")
	sm.Broadcast("c1", "one")
	sm.Broadcast("c2", "ignored")
	assert.Equal(t, "one", <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, sm.Subscribers("c1"))
}
