package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
	"github.com/iliyamo/seminar-hall-booking/internal/middleware"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
	"github.com/iliyamo/seminar-hall-booking/internal/session"
)

// Sessions is the session provider as seen by the HTTP layer.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Register(ctx context.Context, in session.RegisterInput) (model.Identity, error)
	Refresh(ctx context.Context, refreshRaw string) (*session.Session, error)
	Logout(ctx context.Context, id *model.Identity, refreshRaw string) error
	Resolve(ctx context.Context, accessRaw string) (model.Identity, error)
	ListDepartments(ctx context.Context, caller model.Identity) ([]model.Identity, error)
}

// AuthHandler serves registration, login, token refresh, logout and the
// caller's own identity.
type AuthHandler struct {
	Sessions Sessions
	// AdminCode gates /register/admin when non-empty.
	AdminCode string
}

func NewAuthHandler(s Sessions, adminCode string) *AuthHandler {
	return &AuthHandler{Sessions: s, AdminCode: adminCode}
}

type registerReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Code       string `json:"registration_code"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates a department profile.  The client logs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	return h.register(c, model.RoleDepartment)
}

// RegisterAdmin creates an administrator profile.  When an admin
// registration code is configured the request must carry it.
func (h *AuthHandler) RegisterAdmin(c echo.Context) error {
	return h.register(c, model.RoleAdmin)
}

func (h *AuthHandler) register(c echo.Context, role model.Role) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if role == model.RoleAdmin && h.AdminCode != "" &&
		subtle.ConstantTimeCompare([]byte(req.Code), []byte(h.AdminCode)) != 1 {
		return respondError(c, apperr.New(apperr.Forbidden, "invalid registration code"))
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	id, err := h.Sessions.Register(ctx, session.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Department: req.Department,
		Role:       role,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": id})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	s, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Refresh rotates the refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	s, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Logout revokes every refresh token of the caller when a valid bearer
// token is sent, otherwise just the refresh token in the body.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	var caller *model.Identity
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if id, err := h.Sessions.Resolve(ctx, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))); err == nil {
			caller = &id
		}
	}
	if err := h.Sessions.Logout(ctx, caller, req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	return c.JSON(http.StatusOK, echo.Map{"user": id})
}

// Departments lists the registered departments.  Admin only.
func (h *AuthHandler) Departments(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	deps, err := h.Sessions.ListDepartments(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": deps})
}
