package model

import "time"

// MaxNameLength は表示名の最大文字数。
const MaxNameLength = 100

// Role はユーザーの肩書きを表す。
// クライアントとDBのCHECK制約はこの列挙を唯一の定義として共有する。
type Role string

const (
	RolePoet        Role = "poet"
	RoleWriter      Role = "writer"
	RoleStoryteller Role = "storyteller"
	RoleAuthor      Role = "author"
)

// DefaultRole は登録時にroleが省略された場合の値。
const DefaultRole = RolePoet

// ParseRole は文字列をRoleに変換する。未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePoet, RoleWriter, RoleStoryteller, RoleAuthor:
		return Role(s), true
	default:
		return "", false
	}
}

// User はサービス利用ユーザーを表す。
// PasswordHashはレスポンスに含めてはならない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Bio          string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Author は投稿に付与する著者情報。パスワード関連のフィールドは持たない。
type Author struct {
	ID     string
	Name   string
	Avatar string
	Role   Role
	Bio    string
}

// AuthorView はユーザーから著者情報を切り出す。
func (u *User) AuthorView() Author {
	return Author{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Role:   u.Role,
		Bio:    u.Bio,
	}
}
