package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/BradenHooton/gatekeeper/internal/validation"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies on the recording endpoints
const maxBodyBytes = 16 << 10

// LockoutServiceInterface defines the lockout service contract
type LockoutServiceInterface interface {
	RecordAttempt(ctx context.Context, identifier string, params models.RecordAttemptParams) error
	GuardLogin(ctx context.Context, identifier string, params models.RecordAttemptParams) error
	IsAccountLocked(ctx context.Context, identifier string) (*models.LockoutStatus, error)
	UnlockAccount(ctx context.Context, identifier string) error
	DetectBruteForce(ctx context.Context, ipAddress string, windowMinutes, threshold int) (*models.BruteForceResult, error)
	GetAttemptHistory(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error)
	CleanupOldAttempts(ctx context.Context, daysToKeep int) (int64, error)
	GetLockoutStats(ctx context.Context, since time.Time) (*models.LockoutStats, error)
}

// LockoutHandler handles login attempt and lockout HTTP requests
type LockoutHandler struct {
	service  LockoutServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewLockoutHandler creates a new LockoutHandler
func NewLockoutHandler(service LockoutServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *LockoutHandler {
	return &LockoutHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// RecordAttemptRequest is the body of POST /v1/login-attempts.
// ip_address defaults to the caller's client IP when omitted.
type RecordAttemptRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	models.RecordAttemptParams
}

// GuardRequest is the body of POST /v1/login-attempts/guard
type GuardRequest struct {
	Identifier string  `json:"identifier" validate:"required,max=255"`
	Email      *string `json:"email" validate:"required_without=Username,omitempty,max=255"`
	Username   *string `json:"username" validate:"required_without=Email,omitempty,max=255"`
	IPAddress  string  `json:"ip_address" validate:"omitempty,max=45"`
	UserAgent  *string `json:"user_agent" validate:"omitempty,max=512"`
}

// AttemptHistoryResponse is a page of the audit trail
type AttemptHistoryResponse struct {
	Attempts []*models.LoginAttempt `json:"attempts"`
	Total    int64                  `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// CleanupResponse reports a retention cleanup run
type CleanupResponse struct {
	Deleted    int64 `json:"deleted"`
	DaysToKeep int   `json:"days_to_keep"`
}

// RecordAttempt handles POST /v1/login-attempts
func (h *LockoutHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req RecordAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	if err := validation.Struct(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.service.RecordAttempt(r.Context(), req.Identifier, req.RecordAttemptParams); err != nil {
		h.writeServiceError(w, r, "record attempt", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// GuardLogin handles POST /v1/login-attempts/guard.
// Responds 204 when the identifier may attempt a login, 423 when locked.
func (h *LockoutHandler) GuardLogin(w http.ResponseWriter, r *http.Request) {
	var req GuardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	if err := validation.Struct(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	params := models.RecordAttemptParams{
		Email:     req.Email,
		Username:  req.Username,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}

	if err := h.service.GuardLogin(r.Context(), req.Identifier, params); err != nil {
		h.writeServiceError(w, r, "guard login", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLockoutStatus handles GET /v1/lockouts/{identifier}
func (h *LockoutHandler) GetLockoutStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	status, err := h.service.IsAccountLocked(r.Context(), identifier)
	if err != nil {
		h.writeServiceError(w, r, "check lockout", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// UnlockAccount handles DELETE /v1/lockouts/{identifier}
func (h *LockoutHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	if err := h.service.UnlockAccount(r.Context(), identifier); err != nil {
		h.writeServiceError(w, r, "unlock account", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAttemptHistory handles GET /v1/login-attempts
func (h *LockoutHandler) GetAttemptHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := models.HistoryOptions{IdentifierType: query.Get("identifier_type")}

	var err error
	if opts.Limit, err = pkghttp.QueryInt(r, "limit", services.DefaultHistoryLimit); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if opts.Offset, err = pkghttp.QueryInt(r, "offset", 0); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if opts.SuccessOnly, err = pkghttp.QueryBool(r, "success_only"); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if opts.FailedOnly, err = pkghttp.QueryBool(r, "failed_only"); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	attempts, total, err := h.service.GetAttemptHistory(r.Context(), query.Get("identifier"), opts)
	if err != nil {
		h.writeServiceError(w, r, "get attempt history", err)
		return
	}

	limit, offset := services.HistoryPage(opts.Limit, opts.Offset)

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	pkghttp.WriteJSON(w, http.StatusOK, AttemptHistoryResponse{
		Attempts: attempts,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// CleanupOldAttempts handles DELETE /v1/login-attempts?days_to_keep=N
func (h *LockoutHandler) CleanupOldAttempts(w http.ResponseWriter, r *http.Request) {
	days, err := pkghttp.QueryInt(r, "days_to_keep", 0)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	deleted, err := h.service.CleanupOldAttempts(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, "cleanup attempts", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CleanupResponse{Deleted: deleted, DaysToKeep: days})
}

// GetLockoutStats handles GET /v1/lockouts/stats?since=RFC3339 (default 24h ago)
func (h *LockoutHandler) GetLockoutStats(w http.ResponseWriter, r *http.Request) {
	since, err := pkghttp.QueryTime(r, "since", time.Now().Add(-24*time.Hour))
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	stats, err := h.service.GetLockoutStats(r.Context(), since)
	if err != nil {
		h.writeServiceError(w, r, "get lockout stats", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// DetectBruteForce handles GET /v1/security/brute-force?ip=&window_minutes=&threshold=
func (h *LockoutHandler) DetectBruteForce(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		pkghttp.WriteBadRequest(w, "ip is required")
		return
	}

	window, err := pkghttp.QueryInt(r, "window_minutes", 0)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	threshold, err := pkghttp.QueryInt(r, "threshold", 0)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.DetectBruteForce(r.Context(), ip, window, threshold)
	if err != nil {
		h.writeServiceError(w, r, "detect brute force", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// writeServiceError maps service errors onto HTTP responses
func (h *LockoutHandler) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var lockErr *models.LockoutError
	switch {
	case errors.As(err, &lockErr):
		pkghttp.WriteLocked(w, "Account is temporarily locked", lockErr.LockedUntil)
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteValidationError(w, err.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrCounterStoreUnavailable):
		h.logger.ErrorContext(r.Context(), operation+" failed", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Lockout store unavailable")
	default:
		h.logger.ErrorContext(r.Context(), operation+" failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
