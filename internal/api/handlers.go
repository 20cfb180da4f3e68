package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avetel/outreach/internal/ai"
	"github.com/avetel/outreach/internal/metrics"
	"github.com/avetel/outreach/internal/recipient"
	"github.com/avetel/outreach/internal/resume"
	"github.com/avetel/outreach/internal/store"
)

// Version is reported by the health endpoint and the version command.
const Version = "0.1.0"

// ConfigResponse is the response for GET /config
type ConfigResponse struct {
	HasAIKey          bool   `json:"has_ai_key"`
	AIProvider        string `json:"ai_provider"`
	HasEmailConfig    bool   `json:"has_email_config"`
	EmailProvider     string `json:"email_provider"`
	EmailAddress      string `json:"email_address,omitempty"`
	DefaultResumeType string `json:"default_resume_type"`
	MaxRecipients     int    `json:"max_recipients"`
	RateLimitMs       int64  `json:"rate_limit_ms"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// handleConfig handles GET /api/v1/config
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, ConfigResponse{
		HasAIKey:          s.cfg.HasAIKey(),
		AIProvider:        s.cfg.AI.Provider,
		HasEmailConfig:    s.cfg.HasEmailConfig(),
		EmailProvider:     s.cfg.Email.Provider,
		EmailAddress:      s.cfg.Email.Address,
		DefaultResumeType: s.cfg.Resume.DefaultType,
		MaxRecipients:     s.cfg.Batch.MaxRecipients,
		RateLimitMs:       s.cfg.Batch.RateLimitDelay.Milliseconds(),
	})
}

// handleResumeStatus handles GET /api/v1/resumes/status
func (s *Server) handleResumeStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.resumes.Status())
}

// DetectRoleRequest is the request body for POST /role/detect
type DetectRoleRequest struct {
	JobTitle     string `json:"job_title"`
	DraftMessage string `json:"draft_message"`
}

// handleDetectRole handles POST /api/v1/role/detect
func (s *Server) handleDetectRole(w http.ResponseWriter, r *http.Request) {
	var req DetectRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	role := resume.DetectRole(req.JobTitle, req.DraftMessage)
	s.sendJSON(w, http.StatusOK, map[string]string{"role": role})
}

// CraftRequest is the request body for POST /variations/craft
type CraftRequest struct {
	BaseMessage string `json:"base_message"`
	JobTitle    string `json:"job_title"`
	CompanyName string `json:"company_name"`
	Count       int    `json:"count"`
}

// CraftResponse is the response for POST /variations/craft
type CraftResponse struct {
	Variations []string `json:"variations"`
	Provider   string   `json:"provider"`
	Count      int      `json:"count"`
}

// handleCraftVariations handles POST /api/v1/variations/craft
func (s *Server) handleCraftVariations(w http.ResponseWriter, r *http.Request) {
	var req CraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BaseMessage == "" {
		s.sendError(w, http.StatusBadRequest, "base_message is required")
		return
	}

	result, err := s.crafter.CraftVariations(r.Context(), req.BaseMessage, req.JobTitle, req.CompanyName, req.Count)
	if err != nil {
		s.logger.Error("failed to craft variations", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to craft variations")
		return
	}

	source := "ai"
	if result.Provider == ai.ProviderLocal {
		source = "local"
	}
	metrics.AddVariationsGenerated(source, len(result.Variations))

	// Crafting replaces the previous generated set; manual entries stay.
	s.variations.ReplaceGenerated(result.Variations)

	s.sendJSON(w, http.StatusOK, CraftResponse{
		Variations: result.Variations,
		Provider:   result.Provider,
		Count:      len(result.Variations),
	})
}

// VariationsResponse is the response for GET /variations
type VariationsResponse struct {
	Generated []string `json:"generated"`
	Manual    []string `json:"manual"`
	Combined  []string `json:"combined"`
}

// handleListVariations handles GET /api/v1/variations
func (s *Server) handleListVariations(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, VariationsResponse{
		Generated: s.variations.Generated(),
		Manual:    s.variations.Manual(),
		Combined:  s.variations.Combined(),
	})
}

// handleResetVariations handles DELETE /api/v1/variations
func (s *Server) handleResetVariations(w http.ResponseWriter, r *http.Request) {
	s.variations.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// ManualVariationRequest is the request body for manual variation writes
type ManualVariationRequest struct {
	Text string `json:"text"`
}

// handleAddManualVariation handles POST /api/v1/variations/manual
func (s *Server) handleAddManualVariation(w http.ResponseWriter, r *http.Request) {
	var req ManualVariationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		s.sendError(w, http.StatusBadRequest, "text is required")
		return
	}

	s.variations.AddManual(req.Text)
	s.sendJSON(w, http.StatusCreated, map[string]int{"manual_count": len(s.variations.Manual())})
}

// handleUpdateManualVariation handles PUT /api/v1/variations/manual/{index}
func (s *Server) handleUpdateManualVariation(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid index")
		return
	}

	var req ManualVariationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if index < 0 || index >= len(s.variations.Manual()) {
		s.sendError(w, http.StatusNotFound, "variation not found")
		return
	}

	s.variations.UpdateManual(index, req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteManualVariation handles DELETE /api/v1/variations/manual/{index}
func (s *Server) handleDeleteManualVariation(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(s.variations.Manual()) {
		s.sendError(w, http.StatusNotFound, "variation not found")
		return
	}

	s.variations.DeleteManual(index)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteGeneratedVariation handles DELETE /api/v1/variations/generated/{index}
func (s *Server) handleDeleteGeneratedVariation(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(s.variations.Generated()) {
		s.sendError(w, http.StatusNotFound, "variation not found")
		return
	}

	s.variations.DeleteGenerated(index)
	w.WriteHeader(http.StatusNoContent)
}

// CSVRequest is the request body for POST /recipients/csv
type CSVRequest struct {
	CSV string `json:"csv"`
}

// CSVResponse is the response for POST /recipients/csv
type CSVResponse struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"`
}

// handleRecipientsCSV handles POST /api/v1/recipients/csv
func (s *Server) handleRecipientsCSV(w http.ResponseWriter, r *http.Request) {
	var req CSVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CSV == "" {
		s.sendError(w, http.StatusBadRequest, "csv is required")
		return
	}

	parsed, err := recipient.ParseCSV(strings.NewReader(req.CSV))
	if err != nil {
		var missing *recipient.MissingColumnsError
		if errors.As(err, &missing) {
			s.sendError(w, http.StatusBadRequest, missing.Error())
			return
		}
		s.sendError(w, http.StatusBadRequest, "failed to parse CSV: "+err.Error())
		return
	}

	added, err := s.recipients.AddAll(parsed)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, CSVResponse{
		Added:      added,
		Duplicates: len(parsed) - added,
		Total:      s.recipients.Len(),
	})
}

// handleAddRecipient handles POST /api/v1/recipients
func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var rec recipient.Recipient
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(rec.Email); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if err := s.recipients.Add(rec); err != nil {
		var dup *recipient.DuplicateError
		if errors.As(err, &dup) {
			s.sendError(w, http.StatusConflict, err.Error())
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sendJSON(w, http.StatusCreated, map[string]int{"total": s.recipients.Len()})
}

// RecipientsResponse is the response for GET /recipients
type RecipientsResponse struct {
	Recipients []recipient.Recipient `json:"recipients"`
	Total      int                   `json:"total"`
}

// handleListRecipients handles GET /api/v1/recipients
func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	list := s.recipients.List()
	s.sendJSON(w, http.StatusOK, RecipientsResponse{Recipients: list, Total: len(list)})
}

// handleRemoveRecipient handles DELETE /api/v1/recipients/{email}
func (s *Server) handleRemoveRecipient(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if !s.recipients.Remove(email) {
		s.sendError(w, http.StatusNotFound, "recipient not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetRecipients handles DELETE /api/v1/recipients
func (s *Server) handleResetRecipients(w http.ResponseWriter, r *http.Request) {
	s.recipients.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveDraft handles POST /api/v1/drafts
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var draft store.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if draft.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if draft.Message == "" {
		s.sendError(w, http.StatusBadRequest, "message is required")
		return
	}

	// Snapshot the current variation sets with the draft.
	if draft.Generated == nil {
		draft.Generated = s.variations.Generated()
	}
	if draft.Manual == nil {
		draft.Manual = s.variations.Manual()
	}

	if err := s.store.PutDraft(r.Context(), &draft); err != nil {
		s.logger.Error("failed to save draft", "name", draft.Name, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save draft")
		return
	}
	s.sendJSON(w, http.StatusCreated, draft)
}

// handleGetDraft handles GET /api/v1/drafts/{name}
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.store.GetDraft(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.logger.Error("failed to load draft", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load draft")
		return
	}
	if draft == nil {
		s.sendError(w, http.StatusNotFound, "draft not found")
		return
	}
	s.sendJSON(w, http.StatusOK, draft)
}

// handleListDrafts handles GET /api/v1/drafts
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.ListDrafts(r.Context())
	if err != nil {
		s.logger.Error("failed to list drafts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list drafts")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts, "total": len(drafts)})
}

// handleDeleteDraft handles DELETE /api/v1/drafts/{name}
func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDraft(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.logger.Error("failed to delete draft", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveTemplate handles POST /api/v1/templates
func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl store.Template
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if tmpl.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if tmpl.Role == "" {
		tmpl.Role = resume.DetectRole(tmpl.JobTitle, tmpl.Text)
	}

	if err := s.store.PutTemplate(r.Context(), &tmpl); err != nil {
		s.logger.Error("failed to save template", "name", tmpl.Name, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to save template")
		return
	}
	s.sendJSON(w, http.StatusCreated, tmpl)
}

// handleGetTemplate handles GET /api/v1/templates/{name}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.store.GetTemplate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.logger.Error("failed to load template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "template not found")
		return
	}
	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListTemplates(r.Context())
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"templates": templates, "total": len(templates)})
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{name}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTemplate(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.logger.Error("failed to delete template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
