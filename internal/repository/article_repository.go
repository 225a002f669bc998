package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/model"
)

// ArticleRepo provides CRUD operations for knowledge-base articles.  Tags
// are stored as one comma separated column.
type ArticleRepo struct{ db *database.DB }

func NewArticleRepo(db *database.DB) *ArticleRepo { return &ArticleRepo{db: db} }

const articleSelect = `SELECT a.id, a.title, a.content, a.category, a.tags, a.is_published, a.author_id, COALESCE(u.name, ''),
       a.created_at, a.updated_at
FROM information_articles a
LEFT JOIN users u ON u.id = a.author_id`

func scanArticle(s rowScanner) (model.Article, error) {
	var (
		a    model.Article
		tags string
	)
	err := s.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &tags, &a.IsPublished, &a.AuthorID, &a.AuthorName, &a.CreatedAt, &a.UpdatedAt)
	a.Tags = SplitTags(tags)
	return a, err
}

// SplitTags parses the stored tag column, dropping blanks and duplicates.
func SplitTags(s string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func joinTags(tags []string) string {
	return strings.Join(SplitTags(strings.Join(tags, ",")), ",")
}

// Create inserts a and fills its ID and timestamps.
func (r *ArticleRepo) Create(ctx context.Context, a *model.Article) error {
	ts := now()
	a.Tags = SplitTags(strings.Join(a.Tags, ","))
	id, err := r.db.Dialect.InsertID(ctx, r.db,
		`INSERT INTO information_articles (title, content, category, tags, is_published, author_id, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.Title, a.Content, a.Category, joinTags(a.Tags), a.IsPublished, a.AuthorID, ts, ts)
	if err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = ts
	a.UpdatedAt = ts
	return nil
}

// GetByID fetches one article regardless of its published flag.
func (r *ArticleRepo) GetByID(ctx context.Context, id uint64) (model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, r.db.Rebind(articleSelect+" WHERE a.id = ?"), id))
	return a, notFound(err)
}

// ArticleFilter narrows List.
type ArticleFilter struct {
	Category      string
	Query         string // matched against title, content and tags
	PublishedOnly bool
}

// List returns matching articles, most recently updated first.
func (r *ArticleRepo) List(ctx context.Context, f ArticleFilter) ([]model.Article, error) {
	q := articleSelect + " WHERE 1=1"
	var args []any
	if f.PublishedOnly {
		q += " AND a.is_published = ?"
		args = append(args, true)
	}
	if f.Category != "" {
		q += " AND LOWER(a.category) = ?"
		args = append(args, strings.ToLower(strings.TrimSpace(f.Category)))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q += " AND (LOWER(a.title) LIKE ? OR LOWER(a.content) LIKE ? OR LOWER(a.tags) LIKE ?)"
		args = append(args, like, like, like)
	}
	q += " ORDER BY a.updated_at DESC, a.id DESC"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update writes the editable columns of a.
func (r *ArticleRepo) Update(ctx context.Context, a *model.Article) error {
	a.UpdatedAt = now()
	a.Tags = SplitTags(strings.Join(a.Tags, ","))
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE information_articles SET title=?, content=?, category=?, tags=?, is_published=?, updated_at=? WHERE id=?`),
		a.Title, a.Content, a.Category, joinTags(a.Tags), a.IsPublished, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an article.
func (r *ArticleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM information_articles WHERE id=?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories returns distinct non-empty categories with their article
// counts.
func (r *ArticleRepo) Categories(ctx context.Context, publishedOnly bool) ([]model.CategoryCount, error) {
	q := "SELECT category, COUNT(*) FROM information_articles WHERE category <> ''"
	var args []any
	if publishedOnly {
		q += " AND is_published = ?"
		args = append(args, true)
	}
	q += " GROUP BY category ORDER BY category"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CategoryCount{}
	for rows.Next() {
		var c model.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
