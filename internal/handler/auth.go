package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/config"
    "github.com/iliyamo/cinema-reservation/internal/logger"
    "github.com/iliyamo/cinema-reservation/internal/model"
    "github.com/iliyamo/cinema-reservation/internal/repository"
    "github.com/iliyamo/cinema-reservation/internal/utils"
)

// UserStore is what the auth endpoints need from the users table.
type UserStore interface {
    Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error)
    GetByEmail(ctx context.Context, email string) (*model.User, error)
    GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg   config.Config
    Users UserStore
    Log   *logger.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, log *logger.Logger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Log: log}
}

// ----- DTOs -----

type registerReq struct {
    Name     string `json:"name" validate:"required,max=100"`
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type userPart struct {
    ID    uint64 `json:"id"`
    Name  string `json:"name"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

type authResp struct {
    User   userPart  `json:"user"`
    Access tokenPart `json:"access"`
}

// Register creates a user with the user role and returns an access
// token immediately.  Admins are provisioned out of band.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := bindValid(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    uid, err := h.Users.Create(ctx, strings.TrimSpace(req.Name), req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, errorBody{Error: "email already exists", Code: "email_exists"})
        }
        if errors.Is(err, utils.ErrPasswordTooLong) {
            return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation_failed", Field: "password"})
        }
        return respondError(c, h.Log, err)
    }
    return h.issue(c, http.StatusCreated, userPart{ID: uid, Name: req.Name, Email: req.Email, Role: model.RoleUser})
}

// Login verifies the credentials and returns a new access token.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bindValid(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials", Code: "unauthorized"})
        }
        return respondError(c, h.Log, err)
    }
    if !utils.CheckPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials", Code: "unauthorized"})
    }
    return h.issue(c, http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

func (h *AuthHandler) issue(c echo.Context, status int, u userPart) error {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(status, authResp{
        User:   u,
        Access: tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    a, ok := actor(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "unauthorized"})
    }
    u, err := h.Users.GetByID(c.Request().Context(), a.UserID)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusNotFound, errorBody{Error: "user not found", Code: "not_found"})
        }
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}
