package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/poethaven/internal/middleware"
	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, author *model.User, in post.CreateInput) (*model.PostWithAuthor, error)
	List(ctx context.Context) ([]model.PostWithAuthor, error)
	ListByAuthor(ctx context.Context, callerID, userID string) ([]model.PostWithAuthor, error)
	GetByID(ctx context.Context, id string) (*model.PostWithAuthor, error)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service       PostServiceInterface
	maxUploadSize int64
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, maxUploadSize int64) *PostHandler {
	return &PostHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Create は投稿を作成する。フォームのtypeはジャンル、contentTypeは本文形式。
// POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	author, ok := middleware.UserFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError("Not authorized, no token"))
		return
	}

	if err := parseForm(w, r, h.maxUploadSize); err != nil {
		handleServiceError(w, err)
		return
	}
	defer cleanupForm(r)

	image, closeImage, err := formFile(r, "image")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer closeImage()

	created, err := h.service.Create(r.Context(), author, post.CreateInput{
		Title:       r.PostFormValue("title"),
		Category:    r.PostFormValue("type"),
		ContentType: r.PostFormValue("contentType"),
		TextContent: r.PostFormValue("textContent"),
		Image:       image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(created))
}

// List は全投稿を新しい順に返す。
// GET /posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// ListByUser は指定ユーザーの投稿を返す。本人のみ参照できる。
// GET /posts/user/{userId}
func (h *PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError("Not authorized, no token"))
		return
	}

	posts, err := h.service.ListByAuthor(r.Context(), callerID, chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// Get は投稿を1件返す。
// GET /posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}
