package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/config"
	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

// PublicAuthHandler opens x-user-token sessions for ticket requesters.
// Requesters identify themselves by e-mail only.
type PublicAuthHandler struct {
	Cfg      config.Config
	Publics  *repository.PublicUserRepo
	Sessions *repository.SessionRepo
}

func NewPublicAuthHandler(cfg config.Config, p *repository.PublicUserRepo, s *repository.SessionRepo) *PublicAuthHandler {
	return &PublicAuthHandler{Cfg: cfg, Publics: p, Sessions: s}
}

type publicLoginReq struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

type publicLoginResp struct {
	Token   string           `json:"token"`
	Expires time.Time        `json:"expires"`
	User    model.PublicUser `json:"user"`
}

// Login creates (or refreshes) the requester and returns a session token.
func (h *PublicAuthHandler) Login(c echo.Context) error {
	var req publicLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}
	if !h.Cfg.AllowsPublicEmail(email) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "email domain not allowed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Publics.Upsert(ctx, email, req.Name, req.Department)
	if err != nil {
		return respondError(c, err)
	}
	tok, err := utils.NewSessionToken(h.Cfg.PublicSessionTTLHours)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Sessions.Store(ctx, u.ID, utils.HashToken(tok.Raw), tok.Exp); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, publicLoginResp{Token: tok.Raw, Expires: tok.Exp, User: u})
}

// Me returns the requester behind the x-user-token.
func (h *PublicAuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Publics.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Logout revokes the presented session.
func (h *PublicAuthHandler) Logout(c echo.Context) error {
	raw := strings.TrimSpace(c.Request().Header.Get(middleware.PublicTokenHeader))
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, utils.HashToken(raw)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
