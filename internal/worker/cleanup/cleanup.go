// Package cleanup はアップロードディレクトリの孤立ファイル削除ジョブを提供する。
// どのユーザーのアバターにもどの画像投稿にも参照されず、
// 猶予期間（デフォルト24時間）を超えたファイルを削除する。
// 差し替え前のアバターや、永続化前に中断されたアップロードがここで回収される。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hitoshi/poethaven/internal/metrics"
	"github.com/hitoshi/poethaven/internal/repository"
	"github.com/hitoshi/poethaven/internal/upload"
)

// CleanupJob は孤立アップロードの削除ジョブ。冪等に実行できる。
type CleanupJob struct {
	refs    repository.UploadReferenceLister
	dir     string
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	// Grace より新しいファイルは参照がなくても削除しない。
	// 保存直後でまだレコードに書き込まれていないファイルを守る。
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(refs repository.UploadReferenceLister, dir string, grace time.Duration, mc metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		refs:    refs,
		dir:     dir,
		logger:  logger,
		metrics: mc,
		now:     time.Now,
		Grace:   grace,
	}
}

// Run は参照されていない古いファイルを削除し、削除件数を返す。
// 個々のファイルの削除失敗はログに記録して処理を続ける。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	start := j.now()

	refs, err := j.refs.ListUploadReferences(ctx)
	if err != nil {
		j.logger.Error("アップロード参照の取得に失敗しました", slog.String("error", err.Error()))
		return 0, fmt.Errorf("アップロード参照の取得に失敗: %w", err)
	}
	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if name, ok := strings.CutPrefix(ref, upload.PublicPrefix); ok {
			referenced[path.Base(name)] = struct{}{}
		}
	}

	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("アップロードディレクトリの読み込みに失敗: %w", err)
	}

	cutoff := start.Add(-j.Grace)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			j.logger.Warn("孤立ファイルの削除に失敗しました",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	j.metrics.RecordOrphansRemoved(removed)
	j.logger.Info("孤立ファイルのクリーンアップが完了しました",
		slog.Int("deleted_count", removed),
		slog.Int("referenced_count", len(referenced)),
		slog.Float64("grace_hours", j.Grace.Hours()),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)

	return removed, nil
}
