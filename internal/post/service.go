// Package post は投稿の作成と取得を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/poethaven/internal/metrics"
	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/repository"
	"github.com/hitoshi/poethaven/internal/security"
	"github.com/hitoshi/poethaven/internal/upload"
)

// UploadGateway は投稿画像の保存とロールバックに使うアップロード境界。
type UploadGateway interface {
	Accept(policy upload.Policy, f *upload.File) (string, error)
	Remove(storedPath string) error
}

// CreateInput は投稿フォームの内容。
// contentTypeがtextの場合はImageを、imageの場合はTextContentを無視する。
type CreateInput struct {
	Title       string
	Category    string
	ContentType string
	TextContent string
	Image       *upload.File
}

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	postRepo  repository.PostRepository
	uploads   UploadGateway
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	postRepo repository.PostRepository,
	uploads UploadGateway,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		postRepo:  postRepo,
		uploads:   uploads,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,
	}
}

// Create は認証済みユーザーを著者として投稿を作成する。
// 検証は title → contentType → 本文 → category の順に行い、
// すべて通過するまで画像の保存も永続化も行わない。
func (s *Service) Create(ctx context.Context, author *model.User, in CreateInput) (*model.PostWithAuthor, error) {
	title := s.sanitizer.Sanitize(in.Title)
	if title == "" {
		return nil, model.NewInvalidArgumentError("Title is required")
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return nil, model.NewInvalidArgumentError(fmt.Sprintf("Title must be at most %d characters", model.MaxTitleLength))
	}

	rawContentType := strings.TrimSpace(in.ContentType)
	if rawContentType == "" {
		return nil, model.NewInvalidArgumentError("contentType is required")
	}
	contentType, ok := model.ParseContentType(rawContentType)
	if !ok {
		return nil, model.NewInvalidArgumentError("Invalid contentType")
	}

	var text string
	switch contentType {
	case model.ContentTypeText:
		text = s.sanitizer.Sanitize(in.TextContent)
		if text == "" {
			return nil, model.NewInvalidArgumentError("Content is required")
		}
		if utf8.RuneCountInString(text) > model.MaxTextContentLength {
			return nil, model.NewInvalidArgumentError(fmt.Sprintf("Content must be at most %d characters", model.MaxTextContentLength))
		}
	case model.ContentTypeImage:
		if in.Image == nil {
			return nil, model.NewInvalidArgumentError("Image is required")
		}
	}

	category := model.DefaultCategory
	if raw := strings.TrimSpace(in.Category); raw != "" {
		c, ok := model.ParseCategory(raw)
		if !ok {
			return nil, model.NewInvalidArgumentError("Invalid type")
		}
		category = c
	}

	var body model.PostBody = model.TextBody{Text: text}
	var storedImage string
	if contentType == model.ContentTypeImage {
		path, err := s.uploads.Accept(upload.PostImagePolicy, in.Image)
		if err != nil {
			return nil, err
		}
		storedImage = path
		body = model.ImageBody{ImageURL: path}
	}

	now := s.now()
	p := model.Post{
		ID:        uuid.New().String(),
		AuthorID:  author.ID,
		Title:     title,
		Category:  category,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.Create(ctx, &p); err != nil {
		if storedImage != "" {
			if rmErr := s.uploads.Remove(storedImage); rmErr != nil {
				slog.Error("failed to roll back post image",
					slog.String("path", storedImage),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.metrics.RecordPostCreated(string(contentType))
	slog.Info("post created",
		slog.String("post_id", p.ID),
		slog.String("user_id", author.ID),
		slog.String("content_type", string(contentType)),
	)

	return &model.PostWithAuthor{Post: p, Author: author.AuthorView()}, nil
}

// List は全投稿を新しい順に返す。件数の上限はない。
func (s *Service) List(ctx context.Context) ([]model.PostWithAuthor, error) {
	posts, err := s.postRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor は指定ユーザーの投稿を新しい順に返す。
// 呼び出し元と対象ユーザーが異なる場合はForbiddenを返す。
func (s *Service) ListByAuthor(ctx context.Context, callerID, userID string) ([]model.PostWithAuthor, error) {
	if callerID != userID {
		return nil, model.NewForbiddenError("Not authorized to view these posts")
	}

	posts, err := s.postRepo.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return posts, nil
}

// GetByID は指定IDの投稿を返す。存在しない場合はNotFoundを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.PostWithAuthor, error) {
	p, err := s.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError()
	}
	return p, nil
}
