package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresUploadRefRepo はusers.avatarとposts.image_urlからアップロード参照を集める。
type PostgresUploadRefRepo struct {
	db *sql.DB
}

// NewPostgresUploadRefRepo はPostgresUploadRefRepoを生成する。
func NewPostgresUploadRefRepo(db *sql.DB) *PostgresUploadRefRepo {
	return &PostgresUploadRefRepo{db: db}
}

// ListUploadReferences は空でない参照パスを重複なしで返す。
func (r *PostgresUploadRefRepo) ListUploadReferences(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT avatar FROM users WHERE avatar <> ''
		 UNION
		 SELECT image_url FROM posts WHERE image_url IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload references: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan upload reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload references: %w", err)
	}
	return refs, nil
}

// compile-time interface check
var _ UploadReferenceLister = (*PostgresUploadRefRepo)(nil)
