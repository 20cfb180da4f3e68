package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avetel/outreach/internal/dispatch"
	"github.com/avetel/outreach/internal/mailer"
	"github.com/avetel/outreach/internal/metrics"
	"github.com/avetel/outreach/internal/recipient"
	"github.com/avetel/outreach/internal/resume"
	"github.com/avetel/outreach/internal/review"
)

// reviewRun holds the job context fixed for one review session.
type reviewRun struct {
	jobTitle    string
	companyName string
	selection   resume.Selection
	attachment  resume.Info
}

// sendTransport adapts the mailer to the review transport contract. It
// resolves the session's resume attachment and tracks send metrics per
// mode.
type sendTransport struct {
	server *Server
	mode   string
	run    *reviewRun
}

// Send builds and submits the message for one preview.
func (t *sendTransport) Send(ctx context.Context, p review.Preview) error {
	msg := &mailer.Message{
		From:     t.server.cfg.Email.Address,
		FromName: t.server.cfg.Sender.Name,
		To:       p.Recipient.Email,
		Subject:  p.Subject,
		Body:     p.Body,
	}

	if t.run != nil && t.run.attachment.Exists {
		content, err := os.ReadFile(t.run.attachment.Path)
		if err != nil {
			t.server.logger.Warn("failed to read resume, sending without attachment",
				"path", t.run.attachment.Path,
				"error", err,
			)
		} else {
			msg.Attachment = &mailer.Attachment{
				Filename: t.run.attachment.FileName,
				Content:  content,
			}
		}
	}

	if err := t.server.sender.Send(ctx, msg); err != nil {
		metrics.IncEmailsFailed(t.mode)
		return err
	}
	metrics.IncEmailsSent(t.mode)
	return nil
}

// ReviewStartRequest is the request body for POST /review/start
type ReviewStartRequest struct {
	DraftMessage string           `json:"draft_message"`
	JobTitle     string           `json:"job_title"`
	CompanyName  string           `json:"company_name"`
	Resume       resume.Selection `json:"resume"`
}

// ReviewStartResponse is the response for POST /review/start
type ReviewStartResponse struct {
	Total        int              `json:"total"`
	Previews     []review.Preview `json:"previews"`
	Resume       resume.Info      `json:"resume"`
	DetectedRole string           `json:"detected_role,omitempty"`
}

// handleReviewStart handles POST /api/v1/review/start. It builds one
// preview per recipient, each with a uniformly random variation/subject
// pair, and opens the review session.
func (s *Server) handleReviewStart(w http.ResponseWriter, r *http.Request) {
	var req ReviewStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	variations := s.variations.Combined()
	if req.DraftMessage == "" && len(variations) == 0 {
		s.sendError(w, http.StatusBadRequest, "draft_message or variations required")
		return
	}
	recipients := s.recipients.List()
	if len(recipients) == 0 {
		s.sendError(w, http.StatusBadRequest, "no recipients loaded")
		return
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session != nil && s.session.State() == review.StateReviewing {
		s.sendError(w, http.StatusConflict, "a review is already in progress")
		return
	}
	// A new session must not orphan armed sends from the previous one:
	// once detached, their results are lost and stop cannot retract them.
	if s.scheduler != nil && s.scheduler.Pending() > 0 {
		s.sendError(w, http.StatusConflict, "scheduled sends still pending, stop them first")
		return
	}

	// The draft itself is the only variation when none were crafted.
	if len(variations) == 0 {
		variations = []string{req.DraftMessage}
	}

	sel := req.Resume
	if sel.Type == "" {
		sel.Type = resume.TypeAuto
	}
	if sel.Type == resume.TypeAuto && sel.DetectedRole == "" {
		sel.DetectedRole = resume.DetectRole(req.JobTitle, req.DraftMessage)
	}

	run := &reviewRun{
		jobTitle:    req.JobTitle,
		companyName: req.CompanyName,
		selection:   sel,
		attachment:  s.resumes.Resolve(sel),
	}

	subjects := s.subjects.Generate(req.JobTitle, req.CompanyName, 10)
	previews := s.buildPreviews(recipients, variations, subjects, run)

	session := review.NewSession(&sendTransport{server: s, mode: metrics.ModeReview, run: run}, s.logger)
	if err := session.Start(previews); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.session = session
	s.scheduler = nil
	s.run = run
	metrics.SetReviewRemaining(len(previews))

	s.sendJSON(w, http.StatusOK, ReviewStartResponse{
		Total:        len(previews),
		Previews:     previews,
		Resume:       run.attachment,
		DetectedRole: sel.DetectedRole,
	})
}

// buildPreviews personalizes one preview per recipient.
func (s *Server) buildPreviews(recipients []recipient.Recipient, variations, subjects []string, run *reviewRun) []review.Preview {
	previews := make([]review.Preview, 0, len(recipients))
	for _, rec := range recipients {
		s.rngMu.Lock()
		vi := s.rng.Intn(len(variations))
		si := s.rng.Intn(len(subjects))
		s.rngMu.Unlock()

		body := s.personalizer.EnsureSignature(variations[vi])
		previews = append(previews, review.Preview{
			ID:             uuid.New().String(),
			Recipient:      rec,
			Subject:        s.personalizer.Apply(subjects[si], rec, run.jobTitle, run.companyName),
			Body:           s.personalizer.Body(body, rec, run.jobTitle, run.companyName),
			VariationIndex: vi,
		})
	}
	return previews
}

// currentSession returns the active session or writes an error.
func (s *Server) currentSession(w http.ResponseWriter) *review.Session {
	s.sessionMu.Lock()
	session := s.session
	s.sessionMu.Unlock()

	if session == nil {
		s.sendError(w, http.StatusConflict, "no review in progress")
		return nil
	}
	return session
}

// handleReviewCurrent handles GET /api/v1/review/current
func (s *Server) handleReviewCurrent(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(w)
	if session == nil {
		return
	}

	p, err := session.Current()
	if err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}

	cursor, total := session.Progress()
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"preview":  p,
		"position": cursor + 1,
		"total":    total,
	})
}

// ReviewSendRequest is the request body for POST /review/send. Subject
// and body override the preview when set, allowing last-mile edits.
type ReviewSendRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// handleReviewSend handles POST /api/v1/review/send
func (s *Server) handleReviewSend(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(w)
	if session == nil {
		return
	}

	var req ReviewSendRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	p, err := session.Current()
	if err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	if req.Subject == "" {
		req.Subject = p.Subject
	}
	if req.Body == "" {
		req.Body = p.Body
	}

	sendErr := session.SendCurrent(r.Context(), req.Subject, req.Body)
	summary := session.Summary()
	metrics.SetReviewRemaining(summary.Total - summary.Sent - summary.Skipped)

	if sendErr != nil {
		switch sendErr {
		case review.ErrSendInFlight, review.ErrNotReviewing:
			s.sendError(w, http.StatusConflict, sendErr.Error())
		default:
			// Transport failure: the cursor advanced anyway; report both.
			s.sendJSON(w, http.StatusOK, map[string]interface{}{
				"sent":    false,
				"error":   sendErr.Error(),
				"state":   session.State(),
				"summary": summary,
			})
		}
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"sent":    true,
		"state":   session.State(),
		"summary": summary,
	})
}

// handleReviewSkip handles POST /api/v1/review/skip
func (s *Server) handleReviewSkip(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(w)
	if session == nil {
		return
	}

	if err := session.SkipCurrent(); err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	metrics.IncEmailsSkipped()

	summary := session.Summary()
	metrics.SetReviewRemaining(summary.Total - summary.Sent - summary.Skipped)

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"state":   session.State(),
		"summary": summary,
	})
}

// ScheduleResponse is the response for POST /review/schedule
type ScheduleResponse struct {
	Scheduled int            `json:"scheduled"`
	Window    string         `json:"window"`
	Items     []ScheduleItem `json:"items"`
}

// ScheduleItem is one armed send.
type ScheduleItem struct {
	PreviewID   string    `json:"preview_id"`
	Recipient   string    `json:"recipient"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// handleReviewSchedule handles POST /api/v1/review/schedule. The
// remaining previews are handed to the dispatch engine and the session
// completes immediately; "sent" from here on means "scheduled".
func (s *Server) handleReviewSchedule(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session == nil {
		s.sendError(w, http.StatusConflict, "no review in progress")
		return
	}

	scheduler := dispatch.New(
		&sendTransport{server: s, mode: metrics.ModeScheduled, run: s.run},
		dispatch.Config{
			Window: s.cfg.Schedule.Window,
			Jitter: s.cfg.Schedule.Jitter,
		},
		s.rng,
		s.logger,
	)

	items, err := scheduler.ScheduleRemaining(s.session)
	if err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}

	s.scheduler = scheduler
	metrics.SetReviewRemaining(0)
	metrics.SetScheduledPending(len(items))

	resp := ScheduleResponse{
		Scheduled: len(items),
		Window:    s.cfg.Schedule.Window.String(),
		Items:     make([]ScheduleItem, 0, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, ScheduleItem{
			PreviewID:   it.Preview.ID,
			Recipient:   it.Preview.Recipient.Email,
			ScheduledAt: it.ScheduledAt,
		})
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// StageResponse is the response for POST /review/stage
type StageResponse struct {
	Staged int      `json:"staged"`
	Dir    string   `json:"dir"`
	Files  []string `json:"files"`
}

// handleReviewStage handles POST /api/v1/review/stage. The remaining
// previews are written to the drafts directory as .eml files instead of
// being sent, for manual import into a mail client. Providers whose
// SMTP endpoint cannot create drafts (ProtonMail) get the same review
// flow with a local landing spot.
func (s *Server) handleReviewStage(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session == nil {
		s.sendError(w, http.StatusConflict, "no review in progress")
		return
	}

	remaining, err := s.session.MarkRemainingSent()
	if err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}

	dir := s.cfg.Email.DraftsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("failed to create drafts directory", "dir", dir, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create drafts directory")
		return
	}

	var attachment *mailer.Attachment
	if s.run != nil && s.run.attachment.Exists {
		content, err := os.ReadFile(s.run.attachment.Path)
		if err != nil {
			s.logger.Warn("failed to read resume, staging drafts without attachment",
				"path", s.run.attachment.Path,
				"error", err,
			)
		} else {
			attachment = &mailer.Attachment{
				Filename: s.run.attachment.FileName,
				Content:  content,
			}
		}
	}

	files := make([]string, 0, len(remaining))
	for _, p := range remaining {
		msg := &mailer.Message{
			From:       s.cfg.Email.Address,
			FromName:   s.cfg.Sender.Name,
			To:         p.Recipient.Email,
			Subject:    p.Subject,
			Body:       p.Body,
			Attachment: attachment,
		}
		name := draftFileName(p)
		if err := os.WriteFile(filepath.Join(dir, name), msg.Encode(), 0o644); err != nil {
			s.logger.Error("failed to write draft file", "file", name, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to write draft file")
			return
		}
		files = append(files, name)
	}

	metrics.SetReviewRemaining(0)
	s.logger.Info("drafts staged", "count", len(files), "dir", dir)

	s.sendJSON(w, http.StatusOK, StageResponse{
		Staged: len(files),
		Dir:    dir,
		Files:  files,
	})
}

// draftFileName builds a filesystem-safe name for one staged preview.
func draftFileName(p review.Preview) string {
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("draft_%s_%s_%s.eml",
		sanitizeFilePart(p.Recipient.FirstName),
		sanitizeFilePart(p.Recipient.LastName),
		id,
	)
}

func sanitizeFilePart(s string) string {
	if s == "" {
		return "recipient"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

// handleReviewStop handles POST /api/v1/review/stop. Stopping also
// retracts any armed scheduled sends.
func (s *Server) handleReviewStop(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session == nil {
		s.sendError(w, http.StatusConflict, "no review in progress")
		return
	}

	cancelled := 0
	if s.scheduler != nil {
		cancelled = s.scheduler.Cancel()
	}

	if err := s.session.Stop(); err != nil && cancelled == 0 {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}

	metrics.SetReviewRemaining(0)
	metrics.SetScheduledPending(0)

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"state":     s.session.State(),
		"summary":   s.session.Summary(),
		"cancelled": cancelled,
	})
}

// handleReviewSummary handles GET /api/v1/review/summary
func (s *Server) handleReviewSummary(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(w)
	if session == nil {
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"state":   session.State(),
		"summary": session.Summary(),
	})
}

// handleScheduleResults handles GET /api/v1/review/results
func (s *Server) handleScheduleResults(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	scheduler := s.scheduler
	s.sessionMu.Unlock()

	if scheduler == nil {
		s.sendError(w, http.StatusConflict, "nothing scheduled")
		return
	}

	pending := scheduler.Pending()
	metrics.SetScheduledPending(pending)

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"pending": pending,
		"results": scheduler.Results(),
	})
}

// SendSingleRequest is the request body for POST /send
type SendSingleRequest struct {
	Recipient   recipient.Recipient `json:"recipient"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	JobTitle    string              `json:"job_title"`
	CompanyName string              `json:"company_name"`
	Resume      resume.Selection    `json:"resume"`
}

// handleSendSingle handles POST /api/v1/send, a one-off personalized
// send outside any review session.
func (s *Server) handleSendSingle(w http.ResponseWriter, r *http.Request) {
	var req SendSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Recipient.Email == "" {
		s.sendError(w, http.StatusBadRequest, "recipient email is required")
		return
	}
	if req.Body == "" {
		s.sendError(w, http.StatusBadRequest, "body is required")
		return
	}

	sel := req.Resume
	if sel.Type == resume.TypeAuto && sel.DetectedRole == "" {
		sel.DetectedRole = resume.DetectRole(req.JobTitle, req.Body)
	}
	run := &reviewRun{
		jobTitle:    req.JobTitle,
		companyName: req.CompanyName,
		selection:   sel,
		attachment:  s.resumes.Resolve(sel),
	}

	body := s.personalizer.Body(s.personalizer.EnsureSignature(req.Body), req.Recipient, req.JobTitle, req.CompanyName)
	subject := s.personalizer.Apply(req.Subject, req.Recipient, req.JobTitle, req.CompanyName)

	transport := &sendTransport{server: s, mode: metrics.ModeDirect, run: run}
	err := transport.Send(r.Context(), review.Preview{
		ID:        uuid.New().String(),
		Recipient: req.Recipient,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		s.logger.Error("single send failed", "to", req.Recipient.Email, "error", err)
		s.sendError(w, http.StatusBadGateway, "send failed: "+err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{"sent": true, "recipient": req.Recipient.Email})
}
