package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
)

// ArticleHandler serves the knowledge base.  Anonymous readers only see
// published articles; admin and it_staff see drafts too.
type ArticleHandler struct {
	Articles *repository.ArticleRepo
	// Invalidate drops cached anonymous reads after a write.  May be nil.
	Invalidate func(ctx context.Context)
}

func NewArticleHandler(a *repository.ArticleRepo, invalidate func(ctx context.Context)) *ArticleHandler {
	return &ArticleHandler{Articles: a, Invalidate: invalidate}
}

func canEditArticles(c echo.Context) bool {
	actor, ok := actorFrom(c)
	return ok && actor.IsStaff()
}

func (h *ArticleHandler) invalidate(c echo.Context) {
	if h.Invalidate != nil {
		h.Invalidate(c.Request().Context())
	}
}

// List supports ?category= and ?q=.
func (h *ArticleHandler) List(c echo.Context) error {
	f := repository.ArticleFilter{
		Category:      c.QueryParam("category"),
		Query:         c.QueryParam("q"),
		PublishedOnly: !canEditArticles(c),
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Articles.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items, "total": len(items)})
}

func (h *ArticleHandler) Categories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	cats, err := h.Articles.Categories(ctx, !canEditArticles(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": cats})
}

// Get hides drafts from readers who cannot edit them.
func (h *ArticleHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Articles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !a.IsPublished && !canEditArticles(c) {
		return respondError(c, repository.ErrNotFound)
	}
	return c.JSON(http.StatusOK, a)
}

type articleReq struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	IsPublished *bool    `json:"is_published"`
}

func (r *articleReq) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	r.Category = strings.TrimSpace(r.Category)
	switch {
	case r.Title == "" || r.Content == "":
		return "title and content are required"
	case utf8.RuneCountInString(r.Title) > 255:
		return "title must be at most 255 characters"
	case utf8.RuneCountInString(r.Category) > 100:
		return "category must be at most 100 characters"
	}
	return ""
}

func (h *ArticleHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req articleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	a := model.Article{
		Title:       req.Title,
		Content:     req.Content,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished == nil || *req.IsPublished,
		AuthorID:    uid,
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Articles.Create(ctx, &a); err != nil {
		return respondError(c, err)
	}
	h.invalidate(c)
	created, err := h.Articles.GetByID(ctx, a.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update replaces the article body; an omitted is_published keeps the
// current flag.
func (h *ArticleHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var req articleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Articles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	a.Title, a.Content, a.Category, a.Tags = req.Title, req.Content, req.Category, req.Tags
	if req.IsPublished != nil {
		a.IsPublished = *req.IsPublished
	}
	if err := h.Articles.Update(ctx, &a); err != nil {
		return respondError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, a)
}

func (h *ArticleHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Articles.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	h.invalidate(c)
	return c.NoContent(http.StatusNoContent)
}
