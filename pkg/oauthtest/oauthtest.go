// Package oauthtest provides a fake OAuth provider token endpoint for tests.
package oauthtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// Response describes what the fake token endpoint answers.
type Response struct {
	Status int
	// Body is rendered as JSON unless it is a string, which is written verbatim.
	Body        any
	ContentType string
	// Delay holds the response back, or until the client goes away.
	Delay time.Duration
}

// SuccessBody is the default token payload; it includes a provider-specific field.
func SuccessBody(code string) gin.H {
	return gin.H{
		"access_token":  "access-" + code,
		"refresh_token": "refresh-" + code,
		"expires_in":    3599,
		"token_type":    "Bearer",
		"scope":         "openid email",
		"id_token":      "header.payload.signature",
	}
}

// Server is an httptest server exposing POST /token.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
	respond  func(form url.Values) Response
}

// NewServer starts a fake provider that succeeds for any non-empty code.
// It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{}
	s.respond = func(form url.Values) Response {
		code := form.Get("code")
		if code == "" || form.Get("grant_type") != "authorization_code" {
			return Response{Status: http.StatusBadRequest, Body: gin.H{"error": "invalid_request"}}
		}
		return Response{Status: http.StatusOK, Body: SuccessBody(code)}
	}

	router := gin.New()
	router.POST("/token", s.handleToken)
	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Respond makes every subsequent token request receive r.
func (s *Server) Respond(r Response) {
	s.RespondFunc(func(url.Values) Response { return r })
}

// RespondFunc installs a handler computing the response from the posted form.
func (s *Server) RespondFunc(fn func(form url.Values) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = fn
}

// Requests returns the forms posted so far.
func (s *Server) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.requests))
	copy(out, s.requests)
	return out
}

// Endpoint returns oauth2 endpoints pointing at the fake provider.
func (s *Server) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   s.URL + "/authorize",
		TokenURL:  s.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (s *Server) handleToken(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	form := c.Request.PostForm

	s.mu.Lock()
	s.requests = append(s.requests, form)
	respond := s.respond
	s.mu.Unlock()

	r := respond(form)
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	if r.Status == 0 {
		r.Status = http.StatusOK
	}

	switch body := r.Body.(type) {
	case string:
		ct := r.ContentType
		if ct == "" {
			ct = "text/plain; charset=utf-8"
		}
		c.Data(r.Status, ct, []byte(body))
	default:
		c.JSON(r.Status, body)
	}
}
