package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/poethaven/internal/middleware"
	"github.com/hitoshi/poethaven/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
// 公開プロフィールではEmailを空にして省略する。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Bio       string    `json:"bio"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// authResponse は登録・ログインのレスポンス。トークンとユーザー項目を同じ階層に並べる。
type authResponse struct {
	Token string `json:"token"`
	userResponse
}

// authorResponse は投稿に添える著者情報。
type authorResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
	Bio    string `json:"bio"`
}

// postResponse は投稿のAPIレスポンス。
// textContentとimageUrlはcontentTypeに応じて一方だけを出力する。
type postResponse struct {
	ID          string         `json:"id"`
	AuthorID    string         `json:"authorId"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	ContentType string         `json:"contentType"`
	TextContent string         `json:"textContent,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Author      authorResponse `json:"author"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toProfileResponse(u *model.User) userResponse {
	resp := toUserResponse(u)
	resp.Email = ""
	return resp
}

func toPostResponse(p *model.PostWithAuthor) postResponse {
	resp := postResponse{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Type:        string(p.Category),
		ContentType: string(p.Body.ContentType()),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Author: authorResponse{
			ID:     p.Author.ID,
			Name:   p.Author.Name,
			Avatar: p.Author.Avatar,
			Role:   string(p.Author.Role),
			Bio:    p.Author.Bio,
		},
	}
	switch body := p.Body.(type) {
	case model.TextBody:
		resp.TextContent = body.Text
	case model.ImageBody:
		resp.ImageURL = body.ImageURL
	}
	return resp
}

func toPostResponses(posts []model.PostWithAuthor) []postResponse {
	resp := make([]postResponse, len(posts))
	for i := range posts {
		resp[i] = toPostResponse(&posts[i])
	}
	return resp
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// アップロードの拒否は入力不備として400で返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidArgument, model.ErrCodePayloadTooLarge, model.ErrCodeUnsupportedMediaType:
		return http.StatusBadRequest
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
