//go:build browser

package web_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	web "bulksms/internal/adapters/http"
	"bulksms/internal/adapters/http/perf"
	"bulksms/internal/adapters/provider"
	"bulksms/internal/adapters/storage"
	dispatchStore "bulksms/internal/adapters/storage/dispatch"
)

// browserApp holds the running test server and Playwright handles.
type browserApp struct {
	BaseURL  string
	Provider *provider.NoopClient
	Journal  *dispatchStore.SQLiteStore
	Browser  playwright.Browser
}

// newBrowserApp wires the full handler stack against the noop provider and an in-memory journal.
func newBrowserApp(t *testing.T) *browserApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	noop := provider.NewNoopClient()
	journal := dispatchStore.NewSQLiteStore(storage.NewTimedDB(db, nil, 0))

	srv := httptest.NewUnstartedServer(nil)
	srv.Config.Handler = web.NewMux(&web.Deps{
		Provider:  noop,
		Journal:   journal,
		Collector: perf.NewCollector(perf.DefaultRingSize),
		Location:  time.UTC,
	}, web.Options{
		TrustedOrigins: []string{srv.Listener.Addr().String()},
		RateLimit:      1000,
	})
	srv.Start()

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		db.Close()
	})
	return &browserApp{BaseURL: srv.URL, Provider: noop, Journal: journal, Browser: browser}
}

// newPage creates a new browser page (tab).
func (a *browserApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login signs in and waits for the SMS page.
func (a *browserApp) login(t *testing.T, page playwright.Page, username string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=username]").Fill(username); err != nil {
		t.Fatalf("failed to fill username: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill("secret"); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click login: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/sms", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to /sms: %v", err)
	}
}

func waitForText(t *testing.T, page playwright.Page, selector, text string) {
	t.Helper()
	err := page.Locator(selector + " >> text=" + text).WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(5000),
	})
	if err != nil {
		t.Fatalf("%q not shown in %s", text, selector)
	}
}

// TestBrowser_OneToMany sends one message to three receivers from the form.
func TestBrowser_OneToMany(t *testing.T) {
	app := newBrowserApp(t)
	page := app.newPage(t)
	app.login(t, page, "acme")

	if err := page.Locator("#one-to-many textarea[name=message]").Fill("Shop opens at 9"); err != nil {
		t.Fatalf("failed to fill message: %v", err)
	}
	if err := page.Locator("#one-to-many textarea[name=receivers]").Fill("905551110001\n905551110002\n\n905551110003"); err != nil {
		t.Fatalf("failed to fill receivers: %v", err)
	}
	if err := page.Locator("#one-to-many button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click send: %v", err)
	}
	waitForText(t, page, ".notice.success", "SMS successfully sent to 3 recipients.")

	calls := app.Provider.Calls()
	if len(calls) != 1 || len(calls[0].Receivers) != 3 || calls[0].Username != "acme" {
		t.Errorf("provider calls = %+v", calls)
	}
}

// TestBrowser_UploadGenerateSend walks the file upload, generation and many-to-many send.
func TestBrowser_UploadGenerateSend(t *testing.T) {
	app := newBrowserApp(t)
	page := app.newPage(t)
	app.login(t, page, "acme")

	csv := "phone,name,amount\n905551110001,Ali,12.34\n,Nobody,1\n905551110003,Can,7\n"
	err := page.Locator("input[name=file]").SetInputFiles([]playwright.InputFile{
		{Name: "recipients.csv", MimeType: "text/csv", Buffer: []byte(csv)},
	})
	if err != nil {
		t.Fatalf("failed to attach file: %v", err)
	}
	if err := page.Locator("form[action='/sms/upload'] button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click upload: %v", err)
	}
	waitForText(t, page, ".notice.success", "Loaded recipients.csv with 3 rows.")

	if _, err := page.Locator("select[name=receiver_column]").SelectOption(playwright.SelectOptionValues{
		Values: &[]string{"phone"},
	}); err != nil {
		t.Fatalf("failed to choose receiver column: %v", err)
	}
	if err := page.Locator("#generate textarea[name=template]").Fill("Hi {name}, you owe {amount}"); err != nil {
		t.Fatalf("failed to fill template: %v", err)
	}
	if err := page.Locator("#generate textarea[name=directives]").Fill("amount=round-1"); err != nil {
		t.Fatalf("failed to fill directives: %v", err)
	}
	if err := page.Locator("#generate button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click generate: %v", err)
	}
	waitForText(t, page, ".notice.partial", "Generated 2 messages from 3 rows.")

	if err := page.Locator("#many-to-many button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click send: %v", err)
	}
	waitForText(t, page, ".notice.success", "SMS successfully sent to 2 recipients.")

	calls := app.Provider.Calls()
	if len(calls) != 1 || len(calls[0].Messages) != 2 || calls[0].Messages[0].Message != "Hi Ali, you owe 12.3" {
		t.Fatalf("provider calls = %+v", calls)
	}

	if _, err := page.Goto(app.BaseURL + "/history"); err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	waitForText(t, page, "table", "N-to-N")
	if n, _ := app.Journal.Count(context.Background(), "acme"); n != 1 {
		t.Errorf("journal Count = %d, want 1", n)
	}
}

// TestBrowser_SessionsAreIsolated verifies two operators never see each other's generated messages.
func TestBrowser_SessionsAreIsolated(t *testing.T) {
	app := newBrowserApp(t)

	ctxA, err := app.Browser.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctxA.Close()
	ctxB, err := app.Browser.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctxB.Close()

	pageA, _ := ctxA.NewPage()
	pageB, _ := ctxB.NewPage()
	app.login(t, pageA, "alpha")
	app.login(t, pageB, "beta")

	err = pageA.Locator("input[name=file]").SetInputFiles([]playwright.InputFile{
		{Name: "a.csv", MimeType: "text/csv", Buffer: []byte("phone\n905551110001\n")},
	})
	if err != nil {
		t.Fatalf("failed to attach file: %v", err)
	}
	if err := pageA.Locator("form[action='/sms/upload'] button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click upload: %v", err)
	}
	waitForText(t, pageA, ".notice.success", "Loaded a.csv")

	if _, err := pageB.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	content, err := pageB.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if strings.Contains(content, "a.csv") || strings.Contains(content, `action="/sms/generate"`) {
		t.Error("operator beta sees alpha's upload")
	}
}
