package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// AuthService is what the handlers need from services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*models.Identity, error)
	CheckEmail(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, id int64) error
	Identity(ctx context.Context, id int64) (*models.Identity, error)
	LookupByAccessToken(ctx context.Context, accessToken string) (*models.RefreshRecord, error)
}

type Handler struct {
	svc    AuthService
	logger logging.Logger
}

func NewHandler(svc AuthService, logger logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type validatable interface {
	Validate() error
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := dst.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	identity, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, identity.Summary())
}

func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.CheckEmail(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setTokenHeaders(w, res.AccessToken, "")
	writeOK(w, res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setTokenHeaders(w, pair.AccessToken, "")
	writeOK(w, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.svc.Logout(r.Context(), p.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Del(common.AuthorizationHeaderName)
	w.Header().Del(common.RefreshTokenHeaderName)
	writeOK(w, nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	identity, err := h.svc.Identity(r.Context(), p.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, identity.Summary())
}

type sessionResponse struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Session reports the refresh record behind the presented access token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.LookupByAccessToken(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec == nil {
		writeOK(w, sessionResponse{})
		return
	}
	expiresAt := rec.ExpiresAt
	writeOK(w, sessionResponse{Active: rec.Active(time.Now()), ExpiresAt: &expiresAt})
}

// ForceLogout ends another identity's session.
func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid identity id")
		return
	}
	if err := h.svc.Logout(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, common.ErrorNotFound)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

