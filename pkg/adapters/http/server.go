// Package http exposes the conversation engine as a stateless JSON API with
// server-sent event streams.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/kiosk"
	"github.com/aretw0/kiosk/internal/presentation/graph"
	"github.com/aretw0/kiosk/internal/runtime"
	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/intent"
	"github.com/aretw0/kiosk/pkg/ports"
	"github.com/aretw0/kiosk/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxSourceSize bounds the body of PUT /admin/source.
const maxSourceSize = 4 << 20

// Flows publishes the active flow document.
// *loader.Refresher satisfies it.
type Flows interface {
	Current() *domain.FlowDocument
	Subscribe(fn func(*domain.FlowDocument)) (unsubscribe func())
	Refresh(ctx context.Context) (bool, error)
}

// Admin is the management surface of the flow cache.
// *loader.Loader satisfies it.
type Admin interface {
	Source() ports.Source
	Invalidate(ctx context.Context) error
}

// Server serves conversations over HTTP. It keeps no conversation state:
// clients send their ConversationState and receive the next one.
type Server struct {
	engine  *runtime.Engine
	flows   Flows
	admin   Admin
	metrics Metrics
	origins []string
	lang    string
	logger  *slog.Logger

	Streams *StreamManager
}

// Metrics is the part of the metrics collector the server mounts.
type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithAdmin enables the management endpoints.
func WithAdmin(a Admin) Option {
	return func(s *Server) {
		s.admin = a
	}
}

// WithMetrics mounts /metrics and instruments every route.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigins sets the allowed origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithDefaultLanguage sets the language of conversations started without one.
func WithDefaultLanguage(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.lang = lang
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server.
func NewServer(engine *runtime.Engine, flows Flows, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		flows:   flows,
		lang:    "ja",
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.cors)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/flow/{lang}", s.GetFlow)
	r.Get("/flow/{lang}/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", s.StartConversation)
		r.Post("/render", s.act(s.render))
		r.Post("/select", s.act(s.selectChoice))
		r.Post("/text", s.act(s.submitText))
		r.Post("/suggestion", s.act(s.respond))
		r.Post("/input", s.act(s.submitInput))
		r.Post("/confirm", s.act(s.confirm))
		r.Post("/advance", s.act(s.advance))
		r.Post("/graph", s.ConversationGraph)
	})

	if s.admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Post("/flow/invalidate", s.InvalidateFlow)
			r.Put("/source", s.PutSource)
		})
	}
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// StartRequest is the body of POST /conversations.
type StartRequest struct {
	Language string `json:"language"`
}

// ActionRequest is the body of every conversation transition.
// Only the fields relevant to the endpoint are read.
type ActionRequest struct {
	State    *domain.ConversationState `json:"state"`
	ChoiceID string                    `json:"choiceId,omitempty"`
	Text     string                    `json:"text,omitempty"`
	Value    string                    `json:"value,omitempty"`
	Accepted *bool                     `json:"accepted,omitempty"`
}

// ConversationResponse carries the next state and its view.
type ConversationResponse struct {
	State *domain.ConversationState `json:"state"`
	View  *domain.View              `json:"view"`
}

// ErrorResponse is returned for every failed request. Rejected transitions
// also carry the unchanged conversation so the client can keep rendering.
type ErrorResponse struct {
	Error  string                    `json:"error"`
	Notice *domain.Notice            `json:"notice,omitempty"`
	State  *domain.ConversationState `json:"state,omitempty"`
	View   *domain.View              `json:"view,omitempty"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	doc := s.flows.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "kiosk-http",
		"version":     strings.TrimSpace(kiosk.Version),
		"storeName":   doc.StoreName,
		"flowVersion": doc.Version,
		"fingerprint": doc.Fingerprint(),
		"languages":   doc.LanguageCodes(),
		"management":  s.admin != nil,
	})
}

// GetFlow handles GET /flow/{lang}.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	lf, err := s.flows.Current().Language(chi.URLParam(r, "lang"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lf)
}

// GetGraph handles GET /flow/{lang}/graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	lf, err := s.flows.Current().Language(chi.URLParam(r, "lang"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeMermaid(w, graph.GenerateMermaid(lf, s.engine.EntryNode(), nil))
}

// ConversationGraph handles POST /conversations/graph: the flow of the
// conversation with its visited nodes and current node highlighted.
func (s *Server) ConversationGraph(w http.ResponseWriter, r *http.Request) {
	var body ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "state is required"})
		return
	}
	lf, err := s.flows.Current().Language(body.State.Language)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeMermaid(w, graph.GenerateMermaid(lf, s.engine.EntryNode(), graph.OverlayFor(body.State)))
}

// StartConversation handles POST /conversations.
func (s *Server) StartConversation(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	lang := body.Language
	if lang == "" {
		lang = s.lang
	}
	lf, err := s.flows.Current().Language(lang)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := s.engine.Start(r.Context(), lf, lang)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondWith(w, r, lf, nil, state)
}

type transition func(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error)

// act decodes the client state, reconciles it with the active flow, applies
// t and broadcasts the resulting diff to the conversation's subscribers.
func (s *Server) act(t transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
			return
		}
		if body.State == nil || body.State.ID == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "state is required"})
			return
		}
		for _, field := range []*string{&body.Text, &body.Value, &body.ChoiceID} {
			if *field == "" {
				continue
			}
			clean, err := runner.SanitizeInput(*field)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid input: %v", err)})
				s.logger.Warn("input rejected", "err", err, "size", len(*field))
				return
			}
			*field = clean
		}

		ctx := r.Context()
		client := body.State.Snapshot()
		lf, err := s.flows.Current().Language(client.Language)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		state, _, err := s.engine.Reconcile(ctx, lf, client)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		next, err := t(ctx, lf, state, &body)
		if err != nil {
			if domain.IsRecoverable(err) {
				s.reject(w, r, lf, client, state, err)
				return
			}
			s.fail(w, r, err)
			return
		}
		s.respondWith(w, r, lf, client, next)
	}
}

func (s *Server) render(_ context.Context, _ *domain.LanguageFlow, state *domain.ConversationState, _ *ActionRequest) (*domain.ConversationState, error) {
	return state, nil
}

func (s *Server) selectChoice(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error) {
	return s.engine.SelectChoice(ctx, lf, state, body.ChoiceID)
}

func (s *Server) submitText(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error) {
	return s.engine.SubmitText(ctx, lf, state, body.Text)
}

func (s *Server) respond(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error) {
	accepted, err := answer(body)
	if err != nil {
		return nil, err
	}
	return s.engine.RespondToConfirmation(ctx, lf, state, accepted)
}

func (s *Server) submitInput(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error) {
	return s.engine.SubmitInput(ctx, lf, state, body.Value)
}

func (s *Server) confirm(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, body *ActionRequest) (*domain.ConversationState, error) {
	accepted, err := answer(body)
	if err != nil {
		return nil, err
	}
	return s.engine.SubmitConfirmation(ctx, lf, state, accepted)
}

func (s *Server) advance(ctx context.Context, lf *domain.LanguageFlow, state *domain.ConversationState, _ *ActionRequest) (*domain.ConversationState, error) {
	return s.engine.Advance(ctx, lf, state)
}

// errNoAnswer is returned when a yes/no endpoint gets neither a flag nor a
// recognizable text.
var errNoAnswer = errors.New("accepted or a yes/no text is required")

func answer(body *ActionRequest) (bool, error) {
	if body.Accepted != nil {
		return *body.Accepted, nil
	}
	if accepted, ok := intent.Affirmation(body.Text); ok {
		return accepted, nil
	}
	return false, errNoAnswer
}

func (s *Server) respondWith(w http.ResponseWriter, r *http.Request, lf *domain.LanguageFlow, old, next *domain.ConversationState) {
	view, err := s.engine.Render(lf, next)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(old, next)
	writeJSON(w, http.StatusOK, ConversationResponse{State: next, View: view})
}

func (s *Server) broadcast(old, next *domain.ConversationState) {
	if old == nil {
		return
	}
	diff := domain.Diff(old, next)
	if diff == nil {
		s.logger.Debug("no diff calculated", "conversation_id", next.ID)
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("diff encode failed", "err", err)
		return
	}
	s.Streams.Broadcast(next.ID, string(data))
}

// reject answers a recoverable transition error with the reconciled state,
// its view and a notice.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, lf *domain.LanguageFlow, client, state *domain.ConversationState, cause error) {
	view, err := s.engine.Render(lf, state)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notice := &domain.Notice{
		ID:      uuid.NewString(),
		Kind:    domain.NoticeInvalidInput,
		Message: s.engine.Messages(state.Language).ActionRejected,
	}
	view.Notices = []domain.Notice{*notice}
	s.broadcast(client, state)
	s.logger.Debug("transition rejected", "path", r.URL.Path, "conversation_id", state.ID, "err", cause)
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:  cause.Error(),
		Notice: notice,
		State:  state,
		View:   view,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errNoAnswer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownLanguage):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSourceNotWritable):
		return http.StatusMethodNotAllowed
	case domain.IsRecoverable(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// InvalidateFlow handles POST /admin/flow/invalidate.
func (s *Server) InvalidateFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Invalidate(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.refreshed(w, r)
}

// PutSource handles PUT /admin/source. The body is validated before it
// replaces the source, so a broken document never reaches the kiosks.
func (s *Server) PutSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.admin.Source().(ports.WritableSource)
	if !ok {
		s.fail(w, r, domain.ErrSourceNotWritable)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSourceSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}
	if len(data) > maxSourceSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "source too large"})
		return
	}
	doc, err := flow.Load(data)
	if err == nil {
		err = validator.ValidateDocument(doc, s.engine.EntryNode())
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	if err := src.Write(r.Context(), data); err != nil {
		s.fail(w, r, fmt.Errorf("write source: %w", err))
		return
	}
	if err := s.admin.Invalidate(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("flow source replaced", "size", len(data), "languages", doc.LanguageCodes())
	s.refreshed(w, r)
}

func (s *Server) refreshed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()
	swapped, err := s.flows.Refresh(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"swapped":     swapped,
		"fingerprint": s.flows.Current().Fingerprint(),
	})
}

func writeMermaid(w http.ResponseWriter, diagram string) {
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	_, _ = io.WriteString(w, diagram)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
