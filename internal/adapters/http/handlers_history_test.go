package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bulksms/internal/domain/dispatch"
	"bulksms/internal/domain/sms"
)

func seedDispatches(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		d := dispatch.New(fmt.Sprintf("d%02d", i), dispatch.KindOneToMany, "acme", "hello", 10,
			sms.BatchOutcome{SuccessCount: 10, ChunkCount: 1}, sms.ScheduleWindow{}, testNow.Add(time.Duration(i)*time.Minute))
		if err := app.Journal.Save(context.Background(), d, nil); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
}

func TestHandleHistory_Empty(t *testing.T) {
	setupTestApp(t)
	sess := loginSession(t, "acme")

	rr := doForm(handleHistory, &sess, "GET", "/history", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	assertContains(t, rr.Body.String(), "No dispatches yet.")
}

func TestHandleHistory_Pagination(t *testing.T) {
	setupTestApp(t)
	sess := loginSession(t, "acme")
	seedDispatches(t, 25)

	rr := doForm(handleHistory, &sess, "GET", "/history?page=3&per_page=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	assertContains(t, body, "Page 3 of 3 (25 dispatches)", "1-to-N", `href="/history/d04"`, "Newer")
	if want := `href="/history/d05"`; strings.Contains(body, want) {
		t.Errorf("page 3 should not list %s", want)
	}
}

// TestHandleHistory_AfterSend verifies a send from the SMS page shows up in the journal view.
func TestHandleHistory_AfterSend(t *testing.T) {
	_, journal := setupTestApp(t)
	sess := loginSession(t, "acme")

	doForm(handleOneToMany, &sess, "POST", "/sms/one-to-many", url.Values{
		"message": {"hello"}, "receivers": {"905551110001\n905551110002"},
	})
	list, err := journal.List(context.Background(), "acme", 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %+v, %v", list, err)
	}

	req := httptest.NewRequest("GET", "/history/"+list[0].ID, nil)
	req.SetPathValue("id", list[0].ID)
	rr := serveAs(handleHistoryDetail, &sess, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	assertContains(t, rr.Body.String(), `class="notice success"`, "<table>", "1-to-N dispatch "+list[0].ID)
}

func TestHandleHistoryDetail_NotFound(t *testing.T) {
	setupTestApp(t)
	sess := loginSession(t, "acme")

	req := httptest.NewRequest("GET", "/history/missing", nil)
	req.SetPathValue("id", "missing")
	rr := serveAs(handleHistoryDetail, &sess, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// TestHandleHistory_OperatorsAreIsolated verifies an operator never sees another operator's dispatches.
func TestHandleHistory_OperatorsAreIsolated(t *testing.T) {
	setupTestApp(t)
	seedDispatches(t, 2)
	other := loginSession(t, "globex")

	rr := doForm(handleHistory, &other, "GET", "/history", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	assertContains(t, rr.Body.String(), "No dispatches yet.")

	req := httptest.NewRequest("GET", "/history/d00", nil)
	req.SetPathValue("id", "d00")
	if rr := serveAs(handleHistoryDetail, &other, req); rr.Code != http.StatusNotFound {
		t.Errorf("detail status = %d, want 404", rr.Code)
	}
}

func TestHandleHistory_NoJournal(t *testing.T) {
	setupTestApp(t)
	app.Journal = nil
	sess := loginSession(t, "acme")

	if rr := doForm(handleHistory, &sess, "GET", "/history", nil); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
