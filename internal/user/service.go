// Package user はプロフィールの参照と更新のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/repository"
	"github.com/hitoshi/poethaven/internal/security"
	"github.com/hitoshi/poethaven/internal/upload"
)

// UploadGateway はアバター画像の保存とロールバックに使うアップロード境界。
type UploadGateway interface {
	Accept(policy upload.Policy, f *upload.File) (string, error)
	Remove(storedPath string) error
}

// UpdateInput はプロフィール更新フォームの内容。
// nilのフィールドは送信されなかったことを表す。
type UpdateInput struct {
	Name   *string
	Bio    *string
	Role   *string
	Avatar *upload.File
}

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	uploads   UploadGateway
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	uploads UploadGateway,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		uploads:   uploads,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// GetProfile は指定ユーザーの公開プロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Update はプロフィールを部分更新する。本人以外はForbidden。
// name・roleは空でない値が送られた場合のみ、bioは送られた場合は空でも反映する。
// 差し替え前のアバターは削除せず、孤立ファイルの掃除ジョブに任せる。
func (s *Service) Update(ctx context.Context, callerID, targetID string, in UpdateInput) (*model.User, error) {
	if callerID != targetID {
		return nil, model.NewForbiddenError("Not authorized to update this user")
	}

	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if in.Name != nil {
		name := s.sanitizer.Sanitize(*in.Name)
		if utf8.RuneCountInString(name) > model.MaxNameLength {
			return nil, model.NewInvalidArgumentError(fmt.Sprintf("Name must be at most %d characters", model.MaxNameLength))
		}
		if name != "" {
			user.Name = name
		}
	}
	if in.Role != nil {
		if raw := strings.TrimSpace(*in.Role); raw != "" {
			role, ok := model.ParseRole(raw)
			if !ok {
				return nil, model.NewInvalidArgumentError("Invalid role")
			}
			user.Role = role
		}
	}
	if in.Bio != nil {
		user.Bio = s.sanitizer.Sanitize(*in.Bio)
	}

	var avatar string
	if in.Avatar != nil {
		avatar, err = s.uploads.Accept(upload.AvatarPolicy, in.Avatar)
		if err != nil {
			return nil, err
		}
		user.Avatar = avatar
	}

	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		if avatar != "" {
			if rmErr := s.uploads.Remove(avatar); rmErr != nil {
				slog.Error("アバターのロールバックに失敗しました",
					slog.String("path", avatar),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", user.ID),
		slog.Bool("avatar_changed", avatar != ""),
	)

	return user, nil
}
