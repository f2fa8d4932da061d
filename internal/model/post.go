package model

import "time"

// 投稿フィールドの上限値。
const (
	MaxTitleLength       = 100
	MaxTextContentLength = 5000
)

// Category は投稿のジャンルを表す。contentTypeとは独立している。
type Category string

const (
	CategoryPoem  Category = "poem"
	CategoryStory Category = "story"
	CategoryProse Category = "prose"
	CategoryOther Category = "other"
)

// DefaultCategory はcategoryが省略された場合の値。
const DefaultCategory = CategoryPoem

// ParseCategory は文字列をCategoryに変換する。未知の値の場合はfalseを返す。
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryPoem, CategoryStory, CategoryProse, CategoryOther:
		return Category(s), true
	default:
		return "", false
	}
}

// ContentType は投稿本文の形式を表す判別子。作成後は変更できない。
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ParseContentType は文字列をContentTypeに変換する。未知の値の場合はfalseを返す。
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case ContentTypeText, ContentTypeImage:
		return ContentType(s), true
	default:
		return "", false
	}
}

// PostBody は投稿本文のタグ付きバリアント。
// 実装はTextBodyとImageBodyのみで、パッケージ外からは追加できない。
type PostBody interface {
	ContentType() ContentType
	isPostBody()
}

// TextBody はテキスト投稿の本文。
type TextBody struct {
	Text string
}

// ContentType はContentTypeTextを返す。
func (TextBody) ContentType() ContentType { return ContentTypeText }
func (TextBody) isPostBody()              {}

// ImageBody は画像投稿の本文。ImageURLはアップロード済みファイルの相対パス。
type ImageBody struct {
	ImageURL string
}

// ContentType はContentTypeImageを返す。
func (ImageBody) ContentType() ContentType { return ContentTypeImage }
func (ImageBody) isPostBody()              {}

// Post は公開された投稿を表す。
type Post struct {
	ID        string
	AuthorID  string
	Title     string
	Category  Category
	Body      PostBody
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostWithAuthor は読み取り時に著者情報をJOINした投稿。
// 著者情報は投稿レコードには保存しない。
type PostWithAuthor struct {
	Post
	Author Author
}
