// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/poethaven/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already registered")

// ErrNotFound は更新対象のレコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はname, role, bio, avatarを上書きし、updated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, user *model.User) error
}

// PostRepository は投稿データの永続化インターフェース。
// 読み取り系はすべてusersとJOINして著者情報を付与する。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PostWithAuthor, error)

	// ListAll は全投稿を作成日時の降順で返す。ページネーションは行わない。
	ListAll(ctx context.Context) ([]model.PostWithAuthor, error)

	// ListByAuthor は指定ユーザーの投稿を作成日時の降順で返す。
	ListByAuthor(ctx context.Context, authorID string) ([]model.PostWithAuthor, error)
}

// UploadReferenceLister はアップロード済みファイルへの参照を列挙する。
// 孤立ファイルの掃除で使用する。
type UploadReferenceLister interface {
	// ListUploadReferences はアバターと画像投稿が参照しているパスをすべて返す。
	ListUploadReferences(ctx context.Context) ([]string, error)
}
