package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"bulksms/internal/adapters/http/middleware"
	"bulksms/internal/adapters/tabular"
	"bulksms/internal/application/orchestrators"
	"bulksms/internal/domain/msgtemplate"
	"bulksms/internal/domain/sms"
)

// maxUploadBytes caps recipient file uploads.
const maxUploadBytes = 10 << 20

// notice is the banner shown above the forms.
type notice struct {
	Kind  string // success, partial, failure or error
	Lines []string
}

// smsForm echoes submitted values back into the forms.
type smsForm struct {
	Message        string
	Receivers      string
	SendMode       string
	SendAt         string
	ExpireMode     string
	ExpireAt       string
	Template       string
	Directives     string
	ReceiverColumn string
	MessageIDs     string
}

type uploadView struct {
	Name    string
	Columns []string
	Preview [][]string
	Rows    int
}

// smsPage is the data for sms.html.
type smsPage struct {
	Notice     *notice
	Balance    string
	Form       smsForm
	Upload     *uploadView
	PairCount  int
	PairSample []sms.MessagePair
	RowErrors  []orchestrators.GenerateMessagesRowError
	Status     *orchestrators.CheckStatusResult
	DispatchID string
}

// newSMSPage builds the page from the latest state of the session workspace.
func newSMSPage(sess middleware.Session) *smsPage {
	if fresh, ok := sessions.Get(sess.Token); ok {
		sess = fresh
	}
	p := &smsPage{Form: smsForm{SendMode: "now", ExpireMode: "never"}}
	if t := sess.Upload; t != nil {
		p.Upload = &uploadView{Name: t.Name, Columns: t.Columns, Preview: t.Preview(tabular.PreviewRows), Rows: t.Len()}
		if len(t.Columns) > 0 {
			p.Form.ReceiverColumn = t.Columns[0]
		}
	}
	p.PairCount = len(sess.Pairs)
	p.PairSample = sess.Pairs[:min(len(sess.Pairs), tabular.PreviewRows)]
	return p
}

func (p *smsPage) fail(err error) {
	p.Notice = &notice{Kind: "error", Lines: []string{userMessage(err)}}
}

// requestSession returns the session and opened credentials, or redirects to the login form.
func requestSession(w http.ResponseWriter, r *http.Request) (middleware.Session, sms.Credentials, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return sess, sms.Credentials{}, false
	}
	creds, err := sessions.Credentials(sess.Token)
	if err != nil {
		middleware.ClearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return sess, sms.Credentials{}, false
	}
	return sess, creds, true
}

func renderSMS(w http.ResponseWriter, r *http.Request, page *smsPage) {
	status := http.StatusOK
	if page.Notice != nil && page.Notice.Kind == "error" {
		status = http.StatusUnprocessableEntity
	}
	renderTemplateStatus(w, r, status, "sms.html", page)
}

// handleSMS renders the send, upload and lookup forms.
func handleSMS(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	renderSMS(w, r, newSMSPage(sess))
}

// handleBalance handles POST /sms/balance
func handleBalance(w http.ResponseWriter, r *http.Request) {
	sess, creds, ok := requestSession(w, r)
	if !ok {
		return
	}
	page := newSMSPage(sess)
	result, err := orchestrators.ExecuteCheckBalance(r.Context(), creds, orchestrators.QueryDeps{Provider: app.Provider})
	if err != nil {
		page.fail(err)
	} else {
		page.Balance = result.Balance
	}
	renderSMS(w, r, page)
}

// handleOneToMany handles POST /sms/one-to-many
func handleOneToMany(w http.ResponseWriter, r *http.Request) {
	sess, creds, ok := requestSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	page := newSMSPage(sess)
	page.Form.Message = r.FormValue("message")
	page.Form.Receivers = r.FormValue("receivers")
	window, err := readWindow(r, &page.Form)
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}

	input := orchestrators.SendOneToManyInput{
		Credentials: creds,
		Message:     page.Form.Message,
		Receivers:   sms.ParseReceivers(page.Form.Receivers),
		Window:      window,
	}
	result, err := orchestrators.ExecuteSendOneToMany(r.Context(), input, sendDeps())
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}
	page.Notice = outcomeNotice(result.Outcome)
	page.DispatchID = result.DispatchID
	page.Form = smsForm{SendMode: "now", ExpireMode: "never", ReceiverColumn: page.Form.ReceiverColumn}
	renderSMS(w, r, page)
}

// handleUpload handles POST /sms/upload
func handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := requestSession(w, r)
	if !ok {
		return
	}
	page := newSMSPage(sess)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			page.fail(fmt.Errorf("%w: file is larger than %d MiB", sms.ErrInvalidArgument, maxUploadBytes>>20))
		} else {
			page.fail(fmt.Errorf("%w: choose a .csv or .xlsx file to upload", sms.ErrInvalidArgument))
		}
		renderSMS(w, r, page)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		page.fail(fmt.Errorf("%w: choose a .csv or .xlsx file to upload", sms.ErrInvalidArgument))
		renderSMS(w, r, page)
		return
	}
	defer file.Close()

	table, err := tabular.Read(header.Filename, file)
	if err != nil {
		slog.Info("dispatch_event", "event", "upload_rejected", "username", sess.Username, "file", header.Filename, "error", err)
		page.fail(err)
		renderSMS(w, r, page)
		return
	}
	sessions.SetUpload(sess.Token, table)
	slog.Info("dispatch_event", "event", "upload_loaded", "username", sess.Username,
		"file", table.Name, "columns", len(table.Columns), "rows", table.Len())

	page = newSMSPage(sess)
	page.Notice = &notice{Kind: "success", Lines: []string{
		fmt.Sprintf("Loaded %s with %s.", table.Name, plural(table.Len(), "row")),
	}}
	renderSMS(w, r, page)
}

// handleGenerate handles POST /sms/generate
func handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := requestSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	page := newSMSPage(sess)
	page.Form.Template = r.FormValue("template")
	page.Form.Directives = r.FormValue("directives")
	page.Form.ReceiverColumn = r.FormValue("receiver_column")

	fresh, _ := sessions.Get(sess.Token)
	if fresh.Upload == nil {
		page.fail(fmt.Errorf("%w: upload a recipient file first", sms.ErrInvalidArgument))
		renderSMS(w, r, page)
		return
	}

	result, err := orchestrators.ExecuteGenerateMessages(r.Context(), orchestrators.GenerateMessagesInput{
		Columns:        fresh.Upload.Columns,
		Rows:           fresh.Upload.Rows,
		Lines:          fresh.Upload.Lines,
		Template:       page.Form.Template,
		Directives:     page.Form.Directives,
		ReceiverColumn: page.Form.ReceiverColumn,
	})
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}
	sessions.SetPairs(sess.Token, result.Pairs)

	form := page.Form
	page = newSMSPage(sess)
	page.Form.Template, page.Form.Directives, page.Form.ReceiverColumn = form.Template, form.Directives, form.ReceiverColumn
	page.RowErrors = result.Errors
	kind := "success"
	lines := []string{fmt.Sprintf("Generated %s from %s.", plural(len(result.Pairs), "message"), plural(result.Total, "row"))}
	if len(result.Errors) > 0 {
		kind = "partial"
		lines = append(lines, fmt.Sprintf("%s skipped.", plural(len(result.Errors), "row")))
	}
	page.Notice = &notice{Kind: kind, Lines: lines}
	renderSMS(w, r, page)
}

// handleManyToMany handles POST /sms/many-to-many
func handleManyToMany(w http.ResponseWriter, r *http.Request) {
	sess, creds, ok := requestSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	page := newSMSPage(sess)
	window, err := readWindow(r, &page.Form)
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}

	fresh, _ := sessions.Get(sess.Token)
	input := orchestrators.SendManyToManyInput{Credentials: creds, Pairs: fresh.Pairs, Window: window}
	result, err := orchestrators.ExecuteSendManyToMany(r.Context(), input, sendDeps())
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}
	page.Notice = outcomeNotice(result.Outcome)
	page.DispatchID = result.DispatchID
	renderSMS(w, r, page)
}

// handleStatus handles POST /sms/status
func handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, creds, ok := requestSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	page := newSMSPage(sess)
	page.Form.MessageIDs = r.FormValue("message_ids")

	ids := sms.ParseMessageIDs(page.Form.MessageIDs)
	result, err := orchestrators.ExecuteCheckStatus(r.Context(), creds, ids, orchestrators.QueryDeps{Provider: app.Provider})
	if err != nil {
		page.fail(err)
		renderSMS(w, r, page)
		return
	}
	page.Status = &result
	renderSMS(w, r, page)
}

func sendDeps() orchestrators.SendDeps {
	deps := orchestrators.SendDeps{
		Provider:   app.Provider,
		Report:     app.Report,
		GenerateID: generateID,
		Now:        timeNow,
	}
	if app.Journal != nil {
		deps.Journal = app.Journal
	}
	return deps
}

// readWindow reads the send and expiry choices. "later" and "at" require a time.
func readWindow(r *http.Request, form *smsForm) (sms.ScheduleWindow, error) {
	form.SendMode = r.FormValue("send_mode")
	form.SendAt = r.FormValue("send_at")
	form.ExpireMode = r.FormValue("expire_mode")
	form.ExpireAt = r.FormValue("expire_at")

	var window sms.ScheduleWindow
	if form.SendMode == "later" {
		t, err := sms.ParseFormTime(form.SendAt, app.Location)
		if err != nil {
			return window, err
		}
		if t == nil {
			return window, fmt.Errorf("%w: choose when to send", sms.ErrInvalidArgument)
		}
		window.SendAt = t
	} else {
		form.SendMode = "now"
	}
	if form.ExpireMode == "at" {
		t, err := sms.ParseFormTime(form.ExpireAt, app.Location)
		if err != nil {
			return window, err
		}
		if t == nil {
			return window, fmt.Errorf("%w: choose when the message expires", sms.ErrInvalidArgument)
		}
		window.ExpireAt = t
	} else {
		form.ExpireMode = "never"
	}
	return window, window.Validate()
}

// outcomeNotice turns a batch outcome into the banner shown after a send.
func outcomeNotice(o sms.BatchOutcome) *notice {
	succeeded := fmt.Sprintf("%s succeeded.", plural(o.SucceededChunks(), "chunk"))
	switch o.Verdict() {
	case sms.VerdictSuccess:
		return &notice{Kind: "success", Lines: []string{
			fmt.Sprintf("SMS successfully sent to %s.", plural(o.SuccessCount, "recipient")),
			succeeded,
		}}
	case sms.VerdictPartial:
		return &notice{Kind: "partial", Lines: []string{
			fmt.Sprintf("SMS sent to %s, but %s failed.", plural(o.SuccessCount, "recipient"), plural(o.FailureChunkCount, "chunk")),
			succeeded,
		}}
	default:
		return &notice{Kind: "failure", Lines: []string{
			fmt.Sprintf("Sending failed: %s failed.", plural(o.FailureChunkCount, "chunk")),
			succeeded,
		}}
	}
}

// userMessage renders an error for the operator.
func userMessage(err error) string {
	var te *sms.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("Could not reach the SMS provider: %v", te.Err)
	}
	var pr *sms.ProviderRejected
	if errors.As(err, &pr) {
		if pr.Description != "" {
			return fmt.Sprintf("The SMS provider rejected the request (status %d): %s", pr.StatusCode, pr.Description)
		}
		return fmt.Sprintf("The SMS provider rejected the request (status %d).", pr.StatusCode)
	}
	var tpl *msgtemplate.TemplateError
	if errors.As(err, &tpl) {
		return "Template problem: " + err.Error()
	}
	switch {
	case errors.Is(err, sms.ErrInvalidArgument), errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, tabular.ErrNoHeader), errors.Is(err, tabular.ErrDuplicateColumn),
		errors.Is(err, tabular.ErrUnreadable):
		return err.Error()
	case errors.Is(err, msgtemplate.ErrMalformedTemplate), errors.Is(err, msgtemplate.ErrMalformedDirective):
		return "Template problem: " + err.Error()
	}
	slog.Error("request_failed", "error", err)
	return "Something went wrong. Check the file and try again."
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
