package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const sessionName = "demo_session"
const sessionMaxAge = 18000 // 5h

const (
	ctxSessionKey   = "session"
	ctxPrincipalKey = "principal"
	csrfSessionKey  = "csrf_token"
	csrfFormField   = "_csrf"
	csrfHeader      = "X-CSRF-Token"
)

// SessionMiddleware loads the request's session once and applies consistent cookie options.
// A cookie that no longer decodes (rotated secret, flushed store) starts a fresh session.
func SessionMiddleware(cfg Config, store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			if session == nil {
				log.Printf("session load failed: %v", err)
				respondError(c, http.StatusInternalServerError, "An error occurred")
				c.Abort()
				return
			}
			log.Printf("discarding unreadable session cookie: %v", err)
			session.Values = map[interface{}]interface{}{}
			session.ID = ""
			session.IsNew = true
		}

		applySessionOptions(cfg, session)
		c.Set(ctxSessionKey, session)
		c.Next()
	}
}

// OriginRefererMiddleware rejects unsafe requests whose Origin/Referer is neither
// this host nor one of cfg.AllowedOrigins.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			if referer := c.GetHeader("Referer"); referer != "" {
				if u, err := url.Parse(referer); err == nil {
					origin = u.Scheme + "://" + u.Host
				}
			}
		}
		// Same-origin form posts from older clients may carry neither header.
		if origin == "" {
			c.Next()
			return
		}

		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, c.Request.Host) {
			c.Next()
			return
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			c.Next()
			return
		}
		respondError(c, http.StatusForbidden, "Origin not allowed")
		c.Abort()
	}
}

// CSRFMiddleware issues a per-session token and validates it on unsafe methods.
// The token is accepted from the X-CSRF-Token header or the _csrf form field.
func CSRFMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFromContext(c)
		if session == nil {
			respondError(c, http.StatusInternalServerError, "An error occurred")
			c.Abort()
			return
		}

		token, _ := session.Values[csrfSessionKey].(string)
		if token == "" {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				log.Printf("csrf token generation failed: %v", err)
				respondError(c, http.StatusInternalServerError, "An error occurred")
				c.Abort()
				return
			}
			session.Values[csrfSessionKey] = token
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				log.Printf("failed to persist session: %v", err)
				respondError(c, http.StatusInternalServerError, "An error occurred")
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) {
			presented := c.GetHeader(csrfHeader)
			if presented == "" {
				presented = c.PostForm(csrfFormField)
			}
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				respondError(c, http.StatusForbidden, "Invalid or missing CSRF token")
				c.Abort()
				return
			}
		}

		c.Writer.Header().Set(csrfHeader, token)
		c.Set(csrfSessionKey, token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func sessionFromContext(c *gin.Context) *sessions.Session {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*sessions.Session)
	return sess
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = sessionMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
