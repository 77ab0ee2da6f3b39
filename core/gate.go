package core

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionUserIDKey = "user_id"
	sessionEmailKey  = "email"

	loginPath   = "/login"
	profilePath = "/profile"
)

// SessionGate drives the Anonymous <-> Authenticated transitions of a client session.
// It is the only writer of authentication state in the session.
type SessionGate struct {
	cfg   Config
	store sessions.Store
	creds *CredentialStore
}

func NewSessionGate(cfg Config, store sessions.Store, creds *CredentialStore) *SessionGate {
	return &SessionGate{cfg: cfg, store: store, creds: creds}
}

// Login verifies credentials without touching the session.
func (g *SessionGate) Login(ctx context.Context, email, password string) (Principal, error) {
	return g.creds.Authenticate(ctx, email, password)
}

// Begin binds p to the client's session. The previous session id and values
// are discarded so a pre-login id cannot be reused after authentication.
func (g *SessionGate) Begin(c *gin.Context, p Principal) error {
	sess, err := g.session(c)
	if err != nil {
		return err
	}
	if d, ok := g.store.(interface {
		Delete(ctx context.Context, id string) error
	}); ok && sess.ID != "" {
		if err := d.Delete(c.Request.Context(), sess.ID); err != nil {
			return err
		}
	}
	sess.ID = ""
	sess.Values = map[interface{}]interface{}{
		sessionUserIDKey: p.ID,
		sessionEmailKey:  p.Email,
	}
	applySessionOptions(g.cfg, sess)
	return sess.Save(c.Request, c.Writer)
}

// Current returns the principal bound to the request's session, if any.
// The session marker alone is trusted; the credential store is not consulted.
func (g *SessionGate) Current(c *gin.Context) (Principal, bool) {
	sess, err := g.session(c)
	if err != nil {
		return Principal{}, false
	}
	id, ok := sess.Values[sessionUserIDKey].(int64)
	if !ok {
		return Principal{}, false
	}
	email, _ := sess.Values[sessionEmailKey].(string)
	return Principal{ID: id, Email: email}, true
}

// Logout destroys the session unconditionally; it is safe on an anonymous or
// already destroyed session. The negative MaxAge is applied after the shared
// cookie options, which would otherwise reset it.
func (g *SessionGate) Logout(c *gin.Context) error {
	sess, err := g.session(c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	applySessionOptions(g.cfg, sess)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request, c.Writer)
}

// RequireSession redirects anonymous clients to the login page.
func (g *SessionGate) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := g.Current(c)
		if !ok {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

func (g *SessionGate) session(c *gin.Context) (*sessions.Session, error) {
	if sess := sessionFromContext(c); sess != nil {
		return sess, nil
	}
	sess, err := g.store.Get(c.Request, sessionName)
	if err != nil && sess == nil {
		return nil, err
	}
	c.Set(ctxSessionKey, sess)
	return sess, nil
}

func principalFromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
