// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrInvalidCredentials はログイン失敗時の唯一のメッセージ。
// 未登録メールとパスワード不一致を区別しない。
const ErrInvalidCredentials = "Invalid credentials"

// NewInvalidArgumentError は入力値不正エラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewConflictError は一意キー重複エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "validation",
		Action:   "別の値を指定するか、既存のアカウントでログインしてください。",
	}
}

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は所有者以外による操作のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "自分のリソースに対してのみ操作できます。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewMethodNotAllowedError は定義済みパスに対する未対応メソッドのエラーを生成する。
func NewMethodNotAllowedError(method, path string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("Method %s not allowed - %s", method, path),
		Category: "validation",
		Action:   "リクエストのメソッドを確認してください。",
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("File too large (max %d MB)", maxBytes/(1024*1024)),
		Category: "upload",
		Action:   "ファイルサイズを小さくしてから再度アップロードしてください。",
	}
}

// NewUnsupportedMediaTypeError は許可されていないファイル形式のエラーを生成する。
func NewUnsupportedMediaTypeError(allowed string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("Only %s allowed", allowed),
		Category: "upload",
		Action:   "画像ファイルを選択してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return NewNotFoundError("User not found")
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError() *APIError {
	return NewNotFoundError("Post not found")
}
