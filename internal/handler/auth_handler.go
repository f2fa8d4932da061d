// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/poethaven/internal/auth"
	"github.com/hitoshi/poethaven/internal/middleware"
	"github.com/hitoshi/poethaven/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	GetSelf(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler は登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service       AuthServiceInterface
	maxUploadSize int64
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, maxUploadSize int64) *AuthHandler {
	return &AuthHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register は新規ユーザーを登録する。avatarファイルは任意。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, h.maxUploadSize); err != nil {
		handleServiceError(w, err)
		return
	}
	defer cleanupForm(r)

	avatar, closeAvatar, err := formFile(r, "avatar")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer closeAvatar()

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
		Bio:      r.PostFormValue("bio"),
		Avatar:   avatar,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token:        result.Token,
		userResponse: toUserResponse(result.User),
	})
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidArgumentError("Invalid request body"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:        result.Token,
		userResponse: toUserResponse(result.User),
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError("Not authorized, no token"))
		return
	}

	user, err := h.service.GetSelf(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
