// Package http exposes the dispatcher over session-cookie-bound JSON endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/swapflow"
	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/internal/ratelimit"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

const (
	DefaultCookieName = "swapflow_sid"
	maxBodyBytes      = 64 << 10

	busyMessage        = "⏳ Your previous request is still being processed. Please try again in a moment."
	unavailableMessage = "❌ The service is temporarily unavailable. Please try again."
	throttledMessage   = "Too many requests. Please slow down."
)

// envelope is the decoded ChatRequest with every field flattened to text.
type envelope struct {
	Command     string
	Callback    string
	Args        string
	FID         string
	Username    string
	DisplayName string
}

func decodeEnvelope(r *http.Request) (envelope, error) {
	var body ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return envelope{}, err
	}
	env := envelope{
		Command:     deref(body.Command),
		Callback:    deref(body.Callback),
		Args:        deref(body.Args),
		Username:    deref(body.Username),
		DisplayName: deref(body.DisplayName),
	}
	if body.Fid != nil {
		fid, err := fidString(*body.Fid)
		if err != nil {
			return envelope{}, err
		}
		env.FID = fid
	}
	return env, nil
}

// fidString accepts the fid as a JSON string or an integer.
func fidString(fid ChatRequest_Fid) (string, error) {
	if s, err := fid.AsChatRequestFid0(); err == nil {
		return s, nil
	}
	n, err := fid.AsChatRequestFid1()
	if err != nil {
		return "", fmt.Errorf("fid must be a string or an integer: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

func (e envelope) identity() domain.Identity {
	return domain.Identity{
		FID:         strings.TrimSpace(e.FID),
		Username:    e.Username,
		DisplayName: e.DisplayName,
	}
}

// Config holds the transport settings.
type Config struct {
	CookieName   string
	SecureCookie bool
	// CookieTTL bounds the browser cookie; it matches the session store TTL.
	CookieTTL  time.Duration
	CORSOrigin string
}

// Server translates HTTP requests into dispatcher calls.
type Server struct {
	dispatcher ports.ActionDispatcher
	cfg        Config
	limiter    *ratelimit.MapLimiter
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures the Server.
type Option func(*Server)

func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLimiter throttles requests per session.
func WithLimiter(l *ratelimit.MapLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics also mounts GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// NewHandler builds the router from the generated OpenAPI bindings.
func NewHandler(dispatcher ports.ActionDispatcher, opts ...Option) http.Handler {
	s := &Server{
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.CookieName == "" {
		s.cfg.CookieName = DefaultCookieName
	}
	if s.cfg.CORSOrigin == "" {
		s.cfg.CORSOrigin = "*"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		spec, err := rawSpec()
		if err != nil {
			s.logger.Error("Failed to load OpenAPI spec", "err", err)
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(spec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return HandlerWithOptions(s, ChiServerOptions{
		BaseRouter:  r,
		Middlewares: []MiddlewareFunc{s.chatSession},
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeReply(w, http.StatusBadRequest, domain.Reply{Text: "Invalid request: " + err.Error()})
		},
	})
}

type sessionKey struct{}

// chatSession binds every /api request to its cookie session and throttles it.
func (s *Server) chatSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := s.session(w, r)
		if !s.limiter.Allow(sessionID, s.now()) {
			s.metrics.RateLimited()
			s.logger.Warn("Request throttled", "session_id", sessionID, "path", r.URL.Path)
			writeReply(w, http.StatusTooManyRequests, domain.Reply{Text: throttledMessage})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sessionID)))
	})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		App:     "swapflow",
		Version: strings.TrimSpace(swapflow.Version),
	})
}

func (s *Server) ChatCommand(w http.ResponseWriter, r *http.Request) { s.chat(w, r, commandEvent) }
func (s *Server) Callback(w http.ResponseWriter, r *http.Request)    { s.chat(w, r, callbackEvent) }
func (s *Server) Input(w http.ResponseWriter, r *http.Request)       { s.chat(w, r, textEvent) }

func (s *Server) Cancel(w http.ResponseWriter, r *http.Request)   { s.chat(w, r, fixedCommand("cancel")) }
func (s *Server) Start(w http.ResponseWriter, r *http.Request)    { s.chat(w, r, fixedCommand("start")) }
func (s *Server) Help(w http.ResponseWriter, r *http.Request)     { s.chat(w, r, fixedCommand("help")) }
func (s *Server) Buy(w http.ResponseWriter, r *http.Request)      { s.chat(w, r, fixedCommand("buy")) }
func (s *Server) Sell(w http.ResponseWriter, r *http.Request)     { s.chat(w, r, fixedCommand("sell")) }
func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) { s.chat(w, r, fixedCommand("withdraw")) }
func (s *Server) Import(w http.ResponseWriter, r *http.Request)   { s.chat(w, r, fixedCommand("import")) }
func (s *Server) Export(w http.ResponseWriter, r *http.Request)   { s.chat(w, r, fixedCommand("export")) }
func (s *Server) Create(w http.ResponseWriter, r *http.Request)   { s.chat(w, r, fixedCommand("create")) }
func (s *Server) Wallet(w http.ResponseWriter, r *http.Request)   { s.chat(w, r, fixedCommand("wallet")) }
func (s *Server) Deposit(w http.ResponseWriter, r *http.Request)  { s.chat(w, r, fixedCommand("deposit")) }
func (s *Server) Balance(w http.ResponseWriter, r *http.Request)  { s.chat(w, r, fixedCommand("balance")) }
func (s *Server) Settings(w http.ResponseWriter, r *http.Request) { s.chat(w, r, fixedCommand("settings")) }
func (s *Server) History(w http.ResponseWriter, r *http.Request)  { s.chat(w, r, fixedCommand("history")) }

// HistoryFor handles POST /api/history/{timeframe}.
func (s *Server) HistoryFor(w http.ResponseWriter, r *http.Request, timeframe Timeframe) {
	switch timeframe {
	case Day, Week, Month:
	default:
		writeReply(w, http.StatusBadRequest, domain.Reply{Text: "Invalid timeframe. Choose day, week or month."})
		return
	}
	s.chat(w, r, func(envelope) (domain.Event, error) {
		return domain.Command("history", string(timeframe)), nil
	})
}

// eventFunc turns a decoded envelope into an event.
type eventFunc func(envelope) (domain.Event, error)

func commandEvent(req envelope) (domain.Event, error) {
	if strings.TrimSpace(req.Command) == "" {
		return domain.Event{}, errors.New("command is required")
	}
	return domain.Command(req.Command, req.Args), nil
}

func callbackEvent(req envelope) (domain.Event, error) {
	if strings.TrimSpace(req.Callback) == "" {
		return domain.Event{}, errors.New("callback is required")
	}
	return domain.Callback(req.Callback, req.Args), nil
}

// textEvent treats a command in the envelope as such and the rest as free text.
func textEvent(req envelope) (domain.Event, error) {
	if req.Command != "" {
		return commandEvent(req)
	}
	if strings.HasPrefix(strings.TrimSpace(req.Args), "/") {
		name, args, _ := strings.Cut(strings.TrimSpace(req.Args), " ")
		return domain.Command(name, args), nil
	}
	return domain.Text(req.Args), nil
}

func fixedCommand(name string) eventFunc {
	return func(req envelope) (domain.Event, error) {
		return domain.Command(name, req.Args), nil
	}
}

// chat decodes the envelope and hands the event to the dispatcher.
func (s *Server) chat(w http.ResponseWriter, r *http.Request, toEvent eventFunc) {
	sessionID, _ := r.Context().Value(sessionKey{}).(string)
	logger := s.logger.With("session_id", sessionID, "path", r.URL.Path)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := decodeEnvelope(r)
	if err != nil {
		logger.Warn("Invalid request body", "err", err)
		writeReply(w, http.StatusBadRequest, domain.Reply{Text: "Invalid request body."})
		return
	}
	if err := sanitize(&body); err != nil {
		// The input itself is never logged; it may be a private key.
		logger.Warn("Input rejected", "err", err)
		writeReply(w, http.StatusBadRequest, domain.Reply{Text: "Invalid input."})
		return
	}

	ev, err := toEvent(body)
	if err != nil {
		writeReply(w, http.StatusBadRequest, domain.Reply{Text: "Invalid request: " + err.Error()})
		return
	}

	reply, err := s.dispatcher.Dispatch(r.Context(), sessionID, body.identity(), ev)
	switch {
	case err == nil:
		writeReply(w, http.StatusOK, reply)
	case errors.Is(err, domain.ErrSessionBusy):
		logger.Warn("Session busy")
		w.Header().Set("Retry-After", "1")
		writeReply(w, http.StatusServiceUnavailable, domain.Reply{Text: busyMessage})
	case errors.Is(err, context.Canceled):
		logger.Info("Client went away")
	default:
		logger.Error("Dispatch failed", "err", err)
		writeReply(w, http.StatusServiceUnavailable, domain.Reply{Text: unavailableMessage})
	}
}

func sanitize(req *envelope) error {
	for _, field := range []*string{&req.Command, &req.Callback, &req.Args, &req.Username, &req.DisplayName} {
		clean, err := SanitizeInput(*field)
		if err != nil {
			return err
		}
		*field = clean
	}
	return nil
}

// session returns the cookie-bound session id, issuing a new one when absent.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}
	id := s.newID()
	cookie := &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if s.cfg.CookieTTL > 0 {
		cookie.MaxAge = int(s.cfg.CookieTTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return id
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.CORSOrigin
		if origin == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Cookies require an explicit origin.
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeReply(w http.ResponseWriter, status int, reply domain.Reply) {
	writeJSON(w, status, mapReplyFromDomain(reply))
}

func mapReplyFromDomain(reply domain.Reply) ChatResponse {
	resp := ChatResponse{Response: reply.Text}
	if len(reply.Buttons) == 0 {
		return resp
	}
	rows := make([][]Button, 0, len(reply.Buttons))
	for _, row := range reply.Buttons {
		out := make([]Button, 0, len(row))
		for _, b := range row {
			out = append(out, Button{Label: b.Label, Callback: b.Callback})
		}
		rows = append(rows, out)
	}
	resp.Buttons = &rows
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}
