package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

const repoColumns = `id, user_id, name, summary, season, readme,
	is_public, is_pinned, is_starred, stars, commits, created_at, updated_at`

// commitDoc and commentDoc are the JSON shapes stored in repos.commits.
// They mirror the model minus the read-time summaries.
type commitDoc struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	Summary       string       `json:"summary"`
	Description   string       `json:"description"`
	ProjectSeason string       `json:"projectSeason"`
	Comments      []commentDoc `json:"comments"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type commentDoc struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func encodeCommits(commits []model.Commit) (string, error) {
	docs := make([]commitDoc, len(commits))
	for i, c := range commits {
		comments := make([]commentDoc, len(c.Comments))
		for j, cm := range c.Comments {
			comments[j] = commentDoc{ID: cm.ID, AuthorID: cm.AuthorID, Text: cm.Text, CreatedAt: cm.CreatedAt}
		}
		docs[i] = commitDoc{
			ID:            c.ID,
			Number:        c.Number,
			Summary:       c.Summary,
			Description:   c.Description,
			ProjectSeason: c.ProjectSeason,
			Comments:      comments,
			CreatedAt:     c.CreatedAt,
			UpdatedAt:     c.UpdatedAt,
		}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCommits(raw string) ([]model.Commit, error) {
	var docs []commitDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, err
	}
	commits := make([]model.Commit, len(docs))
	for i, d := range docs {
		comments := make([]model.Comment, len(d.Comments))
		for j, cm := range d.Comments {
			comments[j] = model.Comment{ID: cm.ID, AuthorID: cm.AuthorID, Text: cm.Text, CreatedAt: cm.CreatedAt}
		}
		commits[i] = model.Commit{
			ID:            d.ID,
			Number:        d.Number,
			Summary:       d.Summary,
			Description:   d.Description,
			ProjectSeason: d.ProjectSeason,
			Comments:      comments,
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
		}
	}
	return commits, nil
}

func scanRepo(s rowScanner) (*model.Repo, error) {
	var (
		r       model.Repo
		commits string
	)
	err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.Name,
		&r.Summary,
		&r.Season,
		&r.Readme,
		&r.IsPublic,
		&r.IsPinned,
		&r.IsStarred,
		&r.Stars,
		&commits,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.Commits, err = decodeCommits(commits); err != nil {
		return nil, fmt.Errorf("decoding commits of repo %s: %w", r.ID, err)
	}
	return &r, nil
}

// CreateRepo inserts a new repo, generating its ID and timestamps.
func (db *DB) CreateRepo(ctx context.Context, repo *model.Repo) error {
	now := time.Now().UTC()
	repo.ID = xid.New().String()
	repo.CreatedAt = now
	repo.UpdatedAt = now
	if repo.Commits == nil {
		repo.Commits = []model.Commit{}
	}

	commits, err := encodeCommits(repo.Commits)
	if err != nil {
		return fmt.Errorf("sqlite: encoding commits: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO repos (`+repoColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repo.ID,
		repo.UserID,
		repo.Name,
		repo.Summary,
		repo.Season,
		repo.Readme,
		repo.IsPublic,
		repo.IsPinned,
		repo.IsStarred,
		repo.Stars,
		commits,
		repo.CreatedAt,
		repo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting repo %q: %w", repo.Name, err)
	}
	return nil
}

func (db *DB) GetRepoByID(ctx context.Context, id string) (*model.Repo, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE id = ?`, id)
	r, err := scanRepo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("repo")
		}
		return nil, fmt.Errorf("sqlite: getting repo %s: %w", id, err)
	}
	return r, nil
}

func (db *DB) ListReposByOwner(ctx context.Context, ownerID string, publicOnly bool) ([]model.Repo, error) {
	query := `SELECT ` + repoColumns + ` FROM repos WHERE user_id = ?`
	if publicOnly {
		query += ` AND is_public = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return db.queryRepos(ctx, query, ownerID)
}

func (db *DB) ListPublicRepos(ctx context.Context, opts repository.ListOptions) ([]model.Repo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return db.queryRepos(ctx,
		`SELECT `+repoColumns+` FROM repos WHERE is_public = 1
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, opts.Offset)
}

func (db *DB) queryRepos(ctx context.Context, query string, args ...any) ([]model.Repo, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing repos: %w", err)
	}
	defer rows.Close()

	repos := []model.Repo{}
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning repo row: %w", err)
		}
		repos = append(repos, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating repo rows: %w", err)
	}
	return repos, nil
}

// UpdateRepo rewrites the whole row. The WHERE clause matches the owner
// as well as the id, so a repo can only be written through its owner.
func (db *DB) UpdateRepo(ctx context.Context, repo *model.Repo) error {
	repo.UpdatedAt = time.Now().UTC()

	commits, err := encodeCommits(repo.Commits)
	if err != nil {
		return fmt.Errorf("sqlite: encoding commits: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE repos SET
			name = ?, summary = ?, season = ?, readme = ?,
			is_public = ?, is_pinned = ?, is_starred = ?, stars = ?,
			commits = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		repo.Name,
		repo.Summary,
		repo.Season,
		repo.Readme,
		repo.IsPublic,
		repo.IsPinned,
		repo.IsStarred,
		repo.Stars,
		commits,
		repo.UpdatedAt,
		repo.ID,
		repo.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating repo %s: %w", repo.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("repo")
	}
	return nil
}
