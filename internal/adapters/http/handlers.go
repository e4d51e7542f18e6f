package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bulksms/internal/adapters/email"
	"bulksms/internal/adapters/http/middleware"
	"bulksms/internal/application/orchestrators"
)

// handleIndex sends operators to the SMS page and everyone else to the login form.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/sms", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleLogin handles GET (form) and POST (start session) for /login.
// The provider has no login call, so credentials are only checked by the first provider request.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
			http.Redirect(w, r, "/sms", http.StatusSeeOther)
			return
		}
		renderTemplate(w, r, "login.html", map[string]any{})
		return
	}

	if r.Method == "POST" {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input := orchestrators.LoginInput{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}
		result, err := orchestrators.ExecuteLogin(r.Context(), input)
		if err != nil {
			renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "login.html", map[string]any{
				"Error":    err.Error(),
				"Username": input.Username,
			})
			return
		}

		if old := middleware.SessionToken(r); old != "" {
			sessions.Delete(old)
		}
		token, err := sessions.Create(result.Credentials)
		if err != nil {
			internalError(w, err)
			return
		}
		middleware.SetSessionCookie(w, token, sessions.TTL())
		http.Redirect(w, r, "/sms", http.StatusSeeOther)
		return
	}

	w.Header().Set("Allow", "GET, POST")
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleLogout handles POST /logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if sess, ok := sessions.Get(token); ok {
			slog.Info("auth_event", "event", "logout", "username", sess.Username)
		}
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleHelp renders the embedded operator guide.
func handleHelp(w http.ResponseWriter, r *http.Request) {
	src, err := assets.ReadFile("templates/help.md")
	if err != nil {
		internalError(w, err)
		return
	}
	html, err := email.RenderMarkdown(string(src))
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "help.html", map[string]any{
		"Body": template.HTML(html),
	})
}

// perfWindowDefault is how far back /perf aggregates when no minutes parameter is given.
const perfWindowDefault = 60

// handlePerf returns request, query and provider timings as JSON.
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if app.Collector == nil {
		internalError(w, errors.New("perf collector not configured"))
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = perfWindowDefault
	}
	top, err := strconv.Atoi(r.URL.Query().Get("top"))
	if err != nil || top <= 0 {
		top = 10
	}
	snap := app.Collector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), top)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.Error("perf_encode_failed", "error", err)
	}
}
