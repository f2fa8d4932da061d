package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/poethaven/internal/model"
)

// 著者情報はpostsに複製せず、読み取り時にusersとJOINする。
const postWithAuthorSelect = `SELECT
	p.id, p.author_id, p.title, p.category, p.content_type, p.text_content, p.image_url,
	p.created_at, p.updated_at,
	u.name, u.avatar, u.role, u.bio
 FROM posts p
 JOIN users u ON u.id = p.author_id`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。本文はcontentTypeに応じてtext_contentかimage_urlの一方にだけ格納する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	var textContent, imageURL sql.NullString
	switch body := post.Body.(type) {
	case model.TextBody:
		textContent = sql.NullString{String: body.Text, Valid: true}
	case model.ImageBody:
		imageURL = sql.NullString{String: body.ImageURL, Valid: true}
	default:
		return fmt.Errorf("unsupported post body %T", post.Body)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, category, content_type, text_content, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.ID, post.AuthorID, post.Title, string(post.Category), string(post.Body.ContentType()),
		textContent, imageURL, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を著者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.PostWithAuthor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, postWithAuthorSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// ListAll は全投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListAll(ctx context.Context) ([]model.PostWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx, postWithAuthorSelect+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor は指定ユーザーの投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListByAuthor(ctx context.Context, authorID string) ([]model.PostWithAuthor, error) {
	if _, err := uuid.Parse(authorID); err != nil {
		return []model.PostWithAuthor{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		postWithAuthorSelect+` WHERE p.author_id = $1 ORDER BY p.created_at DESC, p.id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return posts, nil
}

// scanPosts は行を読み切ってrowsを閉じる。結果が0件でも非nilのスライスを返す。
func scanPosts(rows *sql.Rows) ([]model.PostWithAuthor, error) {
	defer rows.Close()

	posts := []model.PostWithAuthor{}
	for rows.Next() {
		var (
			p                     model.PostWithAuthor
			category, contentType string
			role                  string
			textContent, imageURL sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.AuthorID, &p.Title, &category, &contentType, &textContent, &imageURL,
			&p.CreatedAt, &p.UpdatedAt,
			&p.Author.Name, &p.Author.Avatar, &role, &p.Author.Bio,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}

		p.Category = model.Category(category)
		p.Author.ID = p.AuthorID
		p.Author.Role = model.Role(role)

		switch model.ContentType(contentType) {
		case model.ContentTypeText:
			p.Body = model.TextBody{Text: textContent.String}
		case model.ContentTypeImage:
			p.Body = model.ImageBody{ImageURL: imageURL.String}
		default:
			return nil, errors.New("unknown content_type in posts row: " + contentType)
		}

		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
