package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/poethaven/internal/middleware"
	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Update はプロフィールを部分更新する。本人以外はForbidden。
	Update(ctx context.Context, callerID, targetID string, in user.UpdateInput) (*model.User, error)
	// GetProfile は公開プロフィールを返す。
	GetProfile(ctx context.Context, id string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service       UserServiceInterface
	maxUploadSize int64
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, maxUploadSize int64) *UserHandler {
	return &UserHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Update はプロフィールを更新する。送信されなかった項目は変更しない。
// PUT /users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError("Not authorized, no token"))
		return
	}

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

	updated, err := h.service.Update(r.Context(), callerID, chi.URLParam(r, "id"), user.UpdateInput{
		Name:   optionalFormValue(r, "name"),
		Bio:    optionalFormValue(r, "bio"),
		Role:   optionalFormValue(r, "role"),
		Avatar: avatar,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Get は公開プロフィールを返す。メールアドレスは含めない。
// GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(u))
}
