// Package callback runs the loopback listener that receives the provider redirect
// and drives the flow from Listening to Closed.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/go-training/oauth-loopback/pkg/core"
	"github.com/go-training/oauth-loopback/pkg/observability"
	"github.com/go-training/oauth-loopback/pkg/provider"
)

const (
	// DefaultShutdownDelay lets the result page flush before the listener closes.
	DefaultShutdownDelay = time.Second

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("callback server already started")

// Exchanger trades an authorization code for tokens.
type Exchanger interface {
	Exchange(ctx context.Context, session *core.AuthSession, code string, port int) (*core.TokenResponse, error)
}

// Outcome is the terminal result of the flow.
type Outcome struct {
	// State is Succeeded or Failed.
	State State
	// Reason is the recorded failure reason; empty on success.
	Reason string
	// Account is set whenever a token was obtained, even if it was not persisted.
	Account *core.AccountRecord
	// Err carries the underlying failure. A *core.StoreWriteError means the
	// token was obtained but not saved.
	Err error
}

// Option configures a Server.
type Option func(*Server)

// WithShutdownDelay sets how long the listener stays up after the terminal transition.
func WithShutdownDelay(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithClock replaces the clock used to timestamp captured accounts.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server is the one-shot loopback callback listener.
type Server struct {
	session   *core.AuthSession
	exchanger Exchanger
	store     core.CredentialStore
	delay     time.Duration
	now       func() time.Time
	engine    *gin.Engine

	mu       sync.Mutex
	state    State
	outcome  Outcome
	port     int
	srv      *http.Server
	started  bool
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Server in the Listening state. Call Start to bind the socket.
func New(session *core.AuthSession, exchanger Exchanger, store core.CredentialStore, opts ...Option) *Server {
	s := &Server{
		session:   session,
		exchanger: exchanger,
		store:     store,
		delay:     DefaultShutdownDelay,
		now:       time.Now,
		state:     Listening,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestContext(), requestLogger())
	engine.GET(provider.CallbackPath, s.handleCallback)
	s.engine = engine
	return s
}

// Start binds 127.0.0.1 on an OS-assigned port and begins serving.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.started = true

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.LoggerFromCtx(context.Background()).Error("Callback server error", "err", err)
		}
	}()

	core.LoggerFromCtx(context.Background()).Info("Callback server listening",
		"port", s.port,
		"redirect_uri", provider.RedirectURI(s.port),
	)
	return nil
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RedirectURI returns the redirect URI for the bound port.
func (s *Server) RedirectURI() string {
	return provider.RedirectURI(s.Port())
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// State reports the current flow state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the server is Closed and returns the terminal outcome.
func (s *Server) Wait() Outcome {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done is closed once the server reaches Closed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close abandons a flow that is still Listening and shuts the listener down at once.
// It is a no-op once a callback has been accepted.
func (s *Server) Close() {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.state = Failed
	s.outcome = Outcome{State: Failed, Reason: "closed before callback"}
	s.mu.Unlock()
	s.shutdown()
}

func (s *Server) handleCallback(c *gin.Context) {
	if !s.claim() {
		c.Status(http.StatusNotFound)
		return
	}

	ctx := c.Request.Context()
	logger := core.LoggerFromCtx(ctx)
	ctx, span := observability.StartSpan(ctx, "oauth.callback")

	// A panicking exchanger or store still ends the flow.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("callback handler panic: %v", r)
			logger.Error("Callback handling aborted", "error", err)
			s.finish(Outcome{State: Failed, Reason: "internal error", Err: err})
			observability.EndSpan(span, err)
			c.Data(http.StatusInternalServerError, contentTypeHTML, []byte(failurePage))
		}
	}()

	result := parse(c, s.session)
	if !result.HasCode() {
		logger.Warn("Authorization failed", "reason", result.Reason)
		s.finish(Outcome{State: Failed, Reason: result.Reason, Err: &core.CallbackError{Reason: result.Reason}})
		observability.AddAttributes(ctx, "Callback failed", attribute.String("oauth.reason", result.Reason))
		observability.EndSpan(span, &core.CallbackError{Reason: result.Reason})
		c.Data(http.StatusOK, contentTypeHTML, []byte(failurePage))
		return
	}

	// The exchange outlives a browser that gives up on the request.
	token, err := s.exchanger.Exchange(context.WithoutCancel(ctx), s.session, result.Code, s.Port())
	if err != nil {
		logger.Error("Token exchange failed", "error", err)
		s.finish(Outcome{State: Failed, Reason: "token exchange failed", Err: err})
		observability.EndSpan(span, err)
		c.Data(http.StatusOK, contentTypeHTML, []byte(failurePage))
		return
	}

	record := core.NewAccountRecord(token, s.now().UnixMilli())
	if err := s.store.Append(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("Token obtained but not saved", "error", err)
		s.finish(Outcome{State: Failed, Reason: "token not saved", Account: &record, Err: err})
		observability.EndSpan(span, err)
		c.Data(http.StatusOK, contentTypeHTML, []byte(notSavedPage))
		return
	}

	logger.Info("Authorization succeeded", "has_refresh_token", record.RefreshToken != "")
	s.finish(Outcome{State: Succeeded, Account: &record})
	observability.AddAttributes(ctx, "Callback succeeded", attribute.String("oauth.status", "ok"))
	observability.EndSpan(span, nil)
	c.Data(http.StatusOK, contentTypeHTML, []byte(successPage))
}

// parse turns the redirect query into a result. A code is only accepted
// together with the session's state.
func parse(c *gin.Context, session *core.AuthSession) core.CallbackResult {
	code := c.Query("code")
	if code == "" {
		reason := c.Query("error")
		if reason == "" {
			reason = core.ErrNoCode.Error()
		}
		return core.ErrorResult(reason)
	}
	if !session.VerifyState(c.Query("state")) {
		return core.ErrorResult(core.ErrStateMismatch.Error())
	}
	return core.CodeResult(code)
}

// claim moves Listening to Handling; only the first callback wins.
func (s *Server) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Listening {
		return false
	}
	s.state = Handling
	return true
}

// finish records the terminal outcome and arms the shutdown timer.
// Only the first call after claim has an effect.
func (s *Server) finish(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Handling {
		return
	}
	s.state = outcome.State
	s.outcome = outcome
	time.AfterFunc(s.delay, s.shutdown)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			core.LoggerFromCtx(ctx).Warn("Callback server shutdown", "err", err)
		}
	}

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}
