package core

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	msgInvalidCredentials = "Invalid email or password"
	msgLoginError         = "An error occurred during login"
	msgTooManyAttempts    = "Too many login attempts. Please try again later."
	msgInvalidEmail       = "Please enter a valid email address."
)

// Server bundles the collaborators the HTTP routes depend on.
type Server struct {
	Config  Config
	Store   sessions.Store
	Creds   *CredentialStore
	Limiter LoginLimiter  // optional
	Checks  []HealthCheck // optional, reported by /healthz
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(s Server) *gin.Engine {
	startedAt := time.Now()
	cfg := s.Config
	gate := NewSessionGate(cfg, s.Store, s.Creds)

	r := gin.Default()
	// X-Forwarded-For keys the login limiter, so only configured proxies may set it.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("invalid TRUSTED_PROXIES, trusting none: %v", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.tmpl")))

	r.GET("/healthz", healthHandler(cfg, s.Checks, startedAt))

	// Page middleware: session -> origin check. CSRF is attached per form route
	// so that feature-flag redirects win over token validation.
	pages := r.Group("/")
	pages.Use(SessionMiddleware(cfg, s.Store))
	pages.Use(OriginRefererMiddleware(cfg))
	csrf := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	if cfg.CSRFEnabled {
		csrf = CSRFMiddleware(cfg)
	}

	pages.GET("/", func(c *gin.Context) {
		if _, ok := gate.Current(c); ok {
			c.Redirect(http.StatusFound, profilePath)
			return
		}
		c.Redirect(http.StatusFound, loginPath)
	})

	pages.GET(loginPath, csrf, func(c *gin.Context) {
		if _, ok := gate.Current(c); ok {
			c.Redirect(http.StatusFound, profilePath)
			return
		}
		renderLogin(c, cfg, http.StatusOK, "")
	})

	pages.POST(loginPath, csrf, func(c *gin.Context) {
		email := c.PostForm("email")
		password := c.PostForm("password")
		ctx := c.Request.Context()
		clientKey := c.ClientIP()

		if err := AllowLogin(ctx, s.Limiter, clientKey); err != nil {
			if errors.Is(err, ErrTooManyAttempts) {
				log.Printf("login throttled: client=%s", clientKey)
				renderLogin(c, cfg, http.StatusTooManyRequests, msgTooManyAttempts)
				return
			}
			log.Printf("login limiter unavailable, allowing attempt: %v", err)
		}

		p, err := gate.Login(ctx, email, password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				log.Printf("login rejected: client=%s", clientKey)
				renderLogin(c, cfg, http.StatusUnauthorized, msgInvalidCredentials)
				return
			}
			log.Printf("login error: %v", err)
			renderLogin(c, cfg, http.StatusInternalServerError, msgLoginError)
			return
		}

		if err := gate.Begin(c, p); err != nil {
			log.Printf("login error: failed to save session for user %d: %v", p.ID, err)
			renderLogin(c, cfg, http.StatusInternalServerError, msgLoginError)
			return
		}
		if s.Limiter != nil {
			if err := s.Limiter.Reset(ctx, clientKey); err != nil {
				log.Printf("login limiter reset failed: %v", err)
			}
		}
		log.Printf("login ok: user=%d", p.ID)
		c.Redirect(http.StatusFound, profilePath)
	})

	pages.GET(profilePath, gate.RequireSession(), func(c *gin.Context) {
		p, _ := principalFromContext(c)
		user, err := s.Creds.FindByID(c.Request.Context(), p.ID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// The account behind a still-valid session is gone.
				if err := gate.Logout(c); err != nil {
					log.Printf("logout of orphaned session failed: %v", err)
				}
				c.Redirect(http.StatusFound, loginPath)
				return
			}
			log.Printf("profile lookup failed for user %d: %v", p.ID, err)
			respondError(c, http.StatusInternalServerError, "An error occurred")
			return
		}
		c.HTML(http.StatusOK, "profile.tmpl", gin.H{"User": user})
	})

	pages.GET("/logout", func(c *gin.Context) {
		if err := gate.Logout(c); err != nil {
			log.Printf("logout: session destroy failed: %v", err)
		}
		c.Redirect(http.StatusFound, loginPath)
	})

	sso := pages.Group("/sso-login", requireFeature(cfg.SSOEnabled), csrf)
	{
		sso.GET("", func(c *gin.Context) {
			c.HTML(http.StatusOK, "sso-login.tmpl", gin.H{"CSRFToken": c.GetString(csrfSessionKey)})
		})

		sso.POST("", func(c *gin.Context) {
			c.HTML(http.StatusOK, "sso-login.tmpl", gin.H{
				"Error":     ssoMessage(cfg, c.PostForm("email")),
				"CSRFToken": c.GetString(csrfSessionKey),
			})
		})
	}

	return r
}

func renderLogin(c *gin.Context, cfg Config, status int, message string) {
	c.HTML(status, "login.tmpl", gin.H{
		"Error":      message,
		"CSRFToken":  c.GetString(csrfSessionKey),
		"SSOEnabled": cfg.SSOEnabled,
	})
}

// requireFeature redirects to the login page while a feature flag is off.
func requireFeature(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ssoMessage is the placeholder SSO response. Without an allowlist every
// domain is reported as allowed; no SSO handshake happens either way.
func ssoMessage(cfg Config, email string) string {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) < 2 || parts[1] == "" {
		return msgInvalidEmail
	}
	domain := parts[1]
	if len(cfg.SSOAllowedDomains) > 0 && !domainAllowed(cfg.SSOAllowedDomains, domain) {
		return fmt.Sprintf("Domain %s is not enabled for SSO.", domain)
	}
	return fmt.Sprintf("SSO login is not implemented in this demo. Domain %s is allowed for SSO.", domain)
}

func domainAllowed(allowed []string, domain string) bool {
	for _, d := range allowed {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
