package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/auth"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/service"
)

// AuthHandler serves registration, login and the owner-only user
// listings.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Phone    string `json:"phone"    validate:"max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role"     validate:"omitempty,oneof=customer developer"`
}

func (r *registerRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = model.NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Role = strings.TrimSpace(r.Role)
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userSummary is the public view of an account returned by register
// and login.
type userSummary struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type registerResponse struct {
	Message     string      `json:"message"`
	AccessToken string      `json:"access_token"`
	User        userSummary `json:"user"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	User        userSummary `json:"user"`
}

type userListItem struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type developerListItem struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func summarize(u *model.User) userSummary {
	return userSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// HandleRegister creates a customer or developer account.
//
// HTTP: POST /api/register
// REQUEST BODY: {"name", "email", "phone"?, "password", "role"?}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:     "User registered successfully",
		AccessToken: res.Token,
		User:        summarize(res.User),
	})
}

// HandleLogin exchanges an email and password for a bearer token.
//
// HTTP: POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.Token,
		User:        summarize(res.User),
	})
}

// HandleListUsers returns every account. Owner only.
//
// HTTP: GET /api/users
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.auth.ListUsers(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]userListItem, 0, len(users))
	for _, u := range users {
		out = append(out, userListItem{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleListDevelopers returns the developers an idea can be assigned
// to. Owner only.
//
// HTTP: GET /api/developers
func (h *AuthHandler) HandleListDevelopers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	devs, err := h.auth.ListDevelopers(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]developerListItem, 0, len(devs))
	for _, d := range devs {
		out = append(out, developerListItem{ID: d.ID, Name: d.Name, Email: d.Email})
	}
	writeJSON(w, http.StatusOK, out)
}

// callerFrom reads the identity stored by auth.RequireAuth, writing a 401
// when the route was mounted without it.
func callerFrom(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (model.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, logger, apperror.Unauthenticated("valid authentication required"))
		return model.Identity{}, false
	}
	return id, true
}
