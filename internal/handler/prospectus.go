package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/service"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxBodyBytes     = 1 << 16
)

// ProspectusService is the onboarding engine as seen by the HTTP layer.
type ProspectusService interface {
	Onboard(ctx context.Context, in domain.NewProspectus) (*domain.Prospectus, error)
	List(ctx context.Context, page, limit int) ([]*domain.Prospectus, error)
	Get(ctx context.Context, id string) (*domain.Prospectus, bool, error)
	Advance(ctx context.Context, id string) (*domain.Prospectus, error)
	IssueActivation(ctx context.Context, id string) (*service.Activation, error)
	VerifyActivation(ctx context.Context, id, key string) (string, error)
}

// ProspectusHandler serves the /tenant-prospectus resource
type ProspectusHandler struct {
	svc    ProspectusService
	logger *slog.Logger
}

// NewProspectusHandler creates a new prospectus handler
func NewProspectusHandler(svc ProspectusService, logger *slog.Logger) *ProspectusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProspectusHandler{svc: svc, logger: logger}
}

// Register mounts the routes under prefix. verify wraps the verification
// route, typically with a per-prospectus rate limit; nil leaves it bare.
func (h *ProspectusHandler) Register(mux *http.ServeMux, prefix string, verify func(http.Handler) http.Handler) {
	base := prefix + "/tenant-prospectus"

	var verification http.Handler = http.HandlerFunc(h.IdentityVerification)
	if verify != nil {
		verification = verify(verification)
	}

	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{id}", h.Get)
	mux.HandleFunc("PUT "+base+"/{id}/promote-status", h.Promote)
	mux.HandleFunc("GET "+base+"/{id}/identity-activation", h.IdentityActivation)
	mux.Handle("GET "+base+"/{id}/identity-verification/{key}", verification)
}

// Create handles POST /tenant-prospectus
func (h *ProspectusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProspectusRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", slog.String("error", err.Error()))
		writeValidation(w, h.logger, map[string]string{"body": "must be a valid JSON object"})
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		writeValidation(w, h.logger, validationFields(err))
		return
	}

	p, err := h.svc.Onboard(r.Context(), req.ToDomain())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, toResponse(p))
}

// List handles GET /tenant-prospectus?page=&limit=
func (h *ProspectusHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, fields := parsePaging(r)
	if len(fields) > 0 {
		writeValidation(w, h.logger, fields)
		return
	}

	items, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]ProspectusResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toResponse(p))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

// Get handles GET /tenant-prospectus/{id}. An unknown id yields a 200 with a
// null body.
func (h *ProspectusHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, found, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeJSON(w, h.logger, http.StatusOK, nil)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toResponse(p))
}

// Promote handles PUT /tenant-prospectus/{id}/promote-status
func (h *ProspectusHandler) Promote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Advance(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toResponse(p))
}

// IdentityActivation handles GET /tenant-prospectus/{id}/identity-activation
func (h *ProspectusHandler) IdentityActivation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	act, err := h.svc.IssueActivation(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ActivationResponse{
		ProspectusResponse: toResponse(act.Prospectus),
		ActivationLink:     act.Link,
	})
}

// IdentityVerification handles GET /tenant-prospectus/{id}/identity-verification/{key}
func (h *ProspectusHandler) IdentityVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	msg, err := h.svc.VerifyActivation(r.Context(), id, r.PathValue("key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, msg)
}

func (h *ProspectusHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	parsed, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeValidation(w, h.logger, map[string]string{"id": "must be a valid UUID"})
		return "", false
	}
	return parsed.String(), true
}

var errNotInteger = errors.New("must be an integer")

// pagingParam parses one positive integer query value. ozzo's Min skips zero
// as an empty value, so Required is what rejects 0.
func pagingParam(raw string, rules ...validation.Rule) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errNotInteger
	}
	rules = append([]validation.Rule{validation.Required, validation.Min(1)}, rules...)
	if err := validation.Validate(n, rules...); err != nil {
		return 0, err
	}
	return n, nil
}

func parsePaging(r *http.Request) (page, limit int, fields map[string]string) {
	page, limit = 1, defaultPageLimit
	q := r.URL.Query()
	errs := validation.Errors{}

	if raw, ok := q["page"]; ok {
		page, errs["page"] = pagingParam(raw[0])
	}
	if raw, ok := q["limit"]; ok {
		limit, errs["limit"] = pagingParam(raw[0], validation.Max(maxPageLimit))
	}

	if err := errs.Filter(); err != nil {
		return 0, 0, validationFields(err)
	}
	return page, limit, nil
}
