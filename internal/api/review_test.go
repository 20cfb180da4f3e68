package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avetel/outreach/internal/config"
	"github.com/avetel/outreach/internal/recipient"
	"github.com/avetel/outreach/internal/review"
)

func recipientFixture() recipient.Recipient {
	return recipient.Recipient{
		Email:     "hr@acme.com",
		FirstName: "Ann",
		LastName:  "Smith",
		Position:  "Engineer",
	}
}

func startReview(t *testing.T, e *testEnv) ReviewStartResponse {
	t.Helper()
	loadRecipients(t, e)
	rec := e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{
		DraftMessage: "Dear Hiring Manager, I am writing to apply for the [Position] role at your company.",
		JobTitle:     "Software Engineer",
		CompanyName:  "Acme",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("review start status = %d: %s", rec.Code, rec.Body.String())
	}
	return decode[ReviewStartResponse](t, rec)
}

// waitPending polls the results endpoint until the armed count drops to
// want. The first scheduled send always fires immediately, so tests
// that inspect the schedule need to let it land first.
func waitPending(t *testing.T, e *testEnv, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, "/api/v1/review/results", nil)
		if rec.Code == http.StatusOK {
			resp := decode[map[string]interface{}](t, rec)
			if int(resp["pending"].(float64)) == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("pending never reached %d", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReviewStartBuildsPersonalizedPreviews(t *testing.T) {
	e := newTestEnv(t, nil)
	resp := startReview(t, e)

	if resp.Total != 2 {
		t.Fatalf("Total = %d, want 2", resp.Total)
	}
	for _, p := range resp.Previews {
		if p.ID == "" {
			t.Error("preview ID not set")
		}
		if strings.Contains(p.Body, "[First Name]") || strings.Contains(p.Body, "[Position]") {
			t.Errorf("body still contains tokens: %q", p.Body)
		}
		if !strings.Contains(p.Body, "Best regards") {
			t.Error("body missing appended signature")
		}
		if p.Subject == "" {
			t.Error("preview subject is empty")
		}
	}
	if resp.DetectedRole != "software" {
		t.Errorf("DetectedRole = %q, want software", resp.DetectedRole)
	}
}

func TestReviewStartValidation(t *testing.T) {
	e := newTestEnv(t, nil)

	// No recipients loaded yet.
	rec := e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{DraftMessage: "hello"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without recipients = %d, want 400", rec.Code)
	}

	// Recipients but no draft and no variations.
	loadRecipients(t, e)
	rec = e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without draft = %d, want 400", rec.Code)
	}
}

func TestReviewStartWhileReviewing(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{DraftMessage: "again"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}
}

func TestReviewWalkSendAndSkip(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodGet, "/api/v1/review/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current status = %d", rec.Code)
	}

	// Send the first with an edited subject.
	rec = e.do(t, http.MethodPost, "/api/v1/review/send", ReviewSendRequest{Subject: "Edited subject"})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}

	// Skip the second, completing the session.
	rec = e.do(t, http.MethodPost, "/api/v1/review/skip", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("skip status = %d", rec.Code)
	}
	resp := decode[map[string]interface{}](t, rec)
	if resp["state"] != string(review.StateComplete) {
		t.Errorf("state = %v, want complete", resp["state"])
	}

	sent := e.sender.sentTo()
	if len(sent) != 1 {
		t.Fatalf("sent = %v, want exactly one message", sent)
	}
	if e.sender.sent[0].Subject != "Edited subject" {
		t.Errorf("Subject = %q, want the edited value", e.sender.sent[0].Subject)
	}

	// Current after completion conflicts.
	rec = e.do(t, http.MethodGet, "/api/v1/review/current", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("current after complete status = %d, want 409", rec.Code)
	}
}

func TestReviewSendFailureAdvances(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sender.failFor["hr@acme.com"] = true
	e.sender.failFor["jobs@beta.io"] = true
	startReview(t, e)

	// Both sends fail but the walk still reaches completion.
	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/api/v1/review/send", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d status = %d", i, rec.Code)
		}
		resp := decode[map[string]interface{}](t, rec)
		if resp["sent"] != false {
			t.Errorf("sent = %v, want false on transport failure", resp["sent"])
		}
	}

	rec := e.do(t, http.MethodGet, "/api/v1/review/summary", nil)
	resp := decode[map[string]interface{}](t, rec)
	if resp["state"] != string(review.StateComplete) {
		t.Errorf("state = %v, want complete", resp["state"])
	}
	summary := resp["summary"].(map[string]interface{})
	if summary["sent"].(float64) != 0 {
		t.Errorf("sent = %v, want 0", summary["sent"])
	}
	if summary["remaining"].(float64) != 2 {
		t.Errorf("remaining = %v, want 2", summary["remaining"])
	}
}

func TestReviewSchedule(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ScheduleResponse](t, rec)
	if resp.Scheduled != 2 {
		t.Fatalf("Scheduled = %d, want 2", resp.Scheduled)
	}

	now := time.Now()
	for _, it := range resp.Items {
		if it.ScheduledAt.Before(now.Add(-time.Minute)) || it.ScheduledAt.After(now.Add(12*time.Hour)) {
			t.Errorf("ScheduledAt = %v outside window", it.ScheduledAt)
		}
	}

	// The session completes optimistically at schedule time: scheduled
	// counts as sent before anything has fired.
	rec = e.do(t, http.MethodGet, "/api/v1/review/summary", nil)
	sresp := decode[map[string]interface{}](t, rec)
	if sresp["state"] != string(review.StateComplete) {
		t.Errorf("state = %v, want complete", sresp["state"])
	}
	summary := sresp["summary"].(map[string]interface{})
	if summary["sent"].(float64) != 2 {
		t.Errorf("sent = %v, want 2", summary["sent"])
	}

	// The first slot is immediate; the second sits 6 hours out.
	waitPending(t, e, 1)
	sent := e.sender.sentTo()
	if len(sent) != 1 || sent[0] != "hr@acme.com" {
		t.Errorf("sent = %v, want the first slot only", sent)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/review/results", nil)
	rresp := decode[map[string]interface{}](t, rec)
	results := rresp["results"].([]interface{})
	if len(results) != 1 {
		t.Errorf("results = %d entries, want 1", len(results))
	}
}

func TestReviewStageWritesDraftFiles(t *testing.T) {
	draftsDir := t.TempDir()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Email.DraftsDir = draftsDir })
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/stage", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stage status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[StageResponse](t, rec)
	if resp.Staged != 2 {
		t.Fatalf("Staged = %d, want 2", resp.Staged)
	}
	if resp.Dir != draftsDir {
		t.Errorf("Dir = %q, want %q", resp.Dir, draftsDir)
	}

	if len(resp.Files) != 2 {
		t.Fatalf("Files = %v, want 2 entries", resp.Files)
	}
	for _, name := range resp.Files {
		if !strings.HasPrefix(name, "draft_") || !strings.HasSuffix(name, ".eml") {
			t.Errorf("file name = %q, want draft_*.eml", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(draftsDir, resp.Files[0]))
	if err != nil {
		t.Fatalf("reading staged draft: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "To: hr@acme.com") {
		t.Errorf("draft missing To header: %q", content)
	}
	if !strings.Contains(content, "Subject: ") {
		t.Errorf("draft missing Subject header: %q", content)
	}

	// Staging never touches the transport; the session still completes.
	if len(e.sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(e.sender.sent))
	}
	rec = e.do(t, http.MethodGet, "/api/v1/review/summary", nil)
	sresp := decode[map[string]interface{}](t, rec)
	if sresp["state"] != string(review.StateComplete) {
		t.Errorf("state = %v, want complete", sresp["state"])
	}
}

func TestReviewStageAfterComplete(t *testing.T) {
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Email.DraftsDir = t.TempDir() })
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/review/stage", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("stage after stop status = %d, want 409", rec.Code)
	}
}

func TestReviewStopCancelsScheduled(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule status = %d", rec.Code)
	}
	// Let the immediate first slot land so only the armed timer remains.
	waitPending(t, e, 1)

	rec = e.do(t, http.MethodPost, "/api/v1/review/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string]interface{}](t, rec)
	if resp["cancelled"].(float64) != 1 {
		t.Errorf("cancelled = %v, want 1", resp["cancelled"])
	}

	if got := e.sender.sentTo(); len(got) != 1 {
		t.Errorf("sent = %v, want only the pre-stop send", got)
	}
}

func TestReviewEndpointsWithoutSession(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/review/current"},
		{http.MethodPost, "/api/v1/review/send"},
		{http.MethodPost, "/api/v1/review/skip"},
		{http.MethodPost, "/api/v1/review/schedule"},
		{http.MethodPost, "/api/v1/review/stage"},
		{http.MethodPost, "/api/v1/review/stop"},
		{http.MethodGet, "/api/v1/review/summary"},
		{http.MethodGet, "/api/v1/review/results"},
	} {
		rec := e.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s %s status = %d, want 409", tc.method, tc.path, rec.Code)
		}
	}
}

func TestSendSingle(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/send", SendSingleRequest{
		Recipient: recipientFixture(),
		Subject:   "Application for [Position]",
		Body:      "Dear [First Name], I would like to apply.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if len(e.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(e.sender.sent))
	}
	msg := e.sender.sent[0]
	if msg.To != "hr@acme.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Body, "Ann") {
		t.Errorf("body not personalized: %q", msg.Body)
	}
	if msg.Subject != "Application for Engineer" {
		t.Errorf("Subject = %q", msg.Subject)
	}
}

func TestSendSingleValidation(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/send", SendSingleRequest{Body: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without recipient = %d, want 400", rec.Code)
	}
}

func TestSendSingleTransportError(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sender.failFor["hr@acme.com"] = true

	rec := e.do(t, http.MethodPost, "/api/v1/send", SendSingleRequest{
		Recipient: recipientFixture(),
		Body:      "Dear [First Name], hello.",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestReviewStartWithPendingScheduled(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule status = %d", rec.Code)
	}
	waitPending(t, e, 1)

	// The armed second slot blocks a fresh session until it is retracted.
	rec = e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{DraftMessage: "next batch"})
	if rec.Code != http.StatusConflict {
		t.Errorf("start with pending sends status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/review/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{DraftMessage: "next batch"})
	if rec.Code != http.StatusOK {
		t.Errorf("start after stop status = %d: %s", rec.Code, rec.Body.String())
	}

	if got := e.sender.sentTo(); len(got) != 1 {
		t.Errorf("sent = %v, want only the pre-stop send", got)
	}
}

func TestReviewRestartAfterStop(t *testing.T) {
	e := newTestEnv(t, nil)
	startReview(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/review/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	// A fresh session replaces the completed one.
	rec = e.do(t, http.MethodPost, "/api/v1/review/start", ReviewStartRequest{
		DraftMessage: "Second round of applications to the same batch.",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("restart status = %d: %s", rec.Code, rec.Body.String())
	}
}
