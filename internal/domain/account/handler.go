package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints on g (normally /api/auth).
// register and login are public; the rest rely on the identity middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/me", h.Me)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
}

func (h *Handler) Register(c echo.Context) error {
	var req Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	u, err := h.svc.CreateUser(c.Request().Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateUser):
		return echo.NewHTTPError(http.StatusConflict, "Email already registered")
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, u.ToResponse())
}

func (h *Handler) Login(c echo.Context) error {
	var req Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	token, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return auth.Unauthorized(c, "Incorrect email or password", err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) Me(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	u, err := h.svc.FindByEmail(c.Request().Context(), ident.Email)
	if errors.Is(err, ErrUserNotFound) {
		return auth.Unauthorized(c, "not authenticated", err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, u.ToResponse())
}

func (h *Handler) Refresh(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	token, err := h.svc.Refresh(ident)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout has no server-side effect: tokens are stateless and there is no
// denylist. Clients discard the token.
func (h *Handler) Logout(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func identity(c echo.Context) (*auth.Identity, error) {
	ident, ok := c.Get(auth.IdentityContextKey).(*auth.Identity)
	if !ok || ident == nil {
		return nil, auth.Unauthorized(c, "not authenticated", auth.ErrMissingCredentials)
	}
	return ident, nil
}
