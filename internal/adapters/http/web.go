package web

import (
	"bytes"
	"crypto/rand"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"bulksms/internal/adapters/email"
	"bulksms/internal/adapters/http/middleware"
	"bulksms/internal/adapters/http/perf"
	"bulksms/internal/adapters/provider"
	dispatchStore "bulksms/internal/adapters/storage/dispatch"
	"bulksms/internal/application/orchestrators"
)

//go:embed templates static
var assets embed.FS

// Deps holds everything the handlers talk to.
type Deps struct {
	Provider  provider.API
	Journal   dispatchStore.Store               // nil disables /history
	Report    *orchestrators.DispatchReportDeps // nil disables report emails
	Collector *perf.Collector
	Location  *time.Location // zone used to read schedule fields; nil means time.Local
}

// Options configures the middleware stack.
type Options struct {
	CSRFKey        []byte // 32 bytes; a random key is generated when empty
	Secure         bool   // HTTPS deployment: Secure cookies and strict Referer checks
	TrustedOrigins []string
	SessionTTL     time.Duration
	RateLimit      int // requests per second per client
	SlowRequest    time.Duration
}

// DefaultRateLimit is the per-client request rate used when Options.RateLimit is unset.
const DefaultRateLimit = 10

// Global dependencies (set by NewMux)
var app *Deps

// Global session store instance
var sessions *middleware.SessionStore

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// NewMux wires HTTP handlers for the app.
func NewMux(d *Deps, opts Options) http.Handler {
	app = d
	if app.Location == nil {
		app.Location = time.Local
	}
	sessions = middleware.NewSessionStore(opts.SessionTTL)
	middleware.SecureCookies = opts.Secure

	mux := http.NewServeMux()
	registerRoutes(mux)

	csrfKey := opts.CSRFKey
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		rand.Read(csrfKey)
		slog.Warn("csrf_key_generated", "detail", "forms will not survive a restart; set BULKSMS_CSRF_KEY")
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = DefaultRateLimit
	}

	// Innermost first: Auth -> CSRF -> SecurityHeaders -> RateLimit -> Timing -> Recover
	return middleware.Chain(mux,
		middleware.Auth(sessions),
		middleware.CSRF(csrfKey, opts.Secure, opts.TrustedOrigins),
		middleware.SecurityHeaders,
		middleware.RateLimit(middleware.NewRateLimiter(rps)),
		middleware.Timing(app.Collector, opts.SlowRequest),
		middleware.Recover,
	)
}

func registerRoutes(mux *http.ServeMux) {
	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("POST /logout", handleLogout)
	mux.HandleFunc("GET /help", handleHelp)

	auth := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	mux.Handle("GET /sms", auth(handleSMS))
	mux.Handle("POST /sms/balance", auth(handleBalance))
	mux.Handle("POST /sms/one-to-many", auth(handleOneToMany))
	mux.Handle("POST /sms/upload", auth(handleUpload))
	mux.Handle("POST /sms/generate", auth(handleGenerate))
	mux.Handle("POST /sms/many-to-many", auth(handleManyToMany))
	mux.Handle("POST /sms/status", auth(handleStatus))
	mux.Handle("GET /history", auth(handleHistory))
	mux.Handle("GET /history/{id}", auth(handleHistoryDetail))
	mux.Handle("GET /perf", auth(handlePerf))
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

// renderTemplateStatus executes layout.html around templateName and writes it with status.
// The page is rendered to a buffer first so a template failure never leaves half a page.
func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	sess, loggedIn := middleware.GetSessionFromContext(r.Context())

	funcMap := template.FuncMap{
		"isLoggedIn":  func() bool { return loggedIn },
		"currentUser": func() string { return sess.Username },
		"csrfField":   func() template.HTML { return csrf.TemplateField(r) },
		"renderMarkdown": func(md string) template.HTML {
			html, err := email.RenderMarkdown(md)
			if err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(html)
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(app.Location).Format("2006-01-02 15:04")
		},
		"add": func(a, b int) int { return a + b },
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(assets, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
