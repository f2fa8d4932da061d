// Package upload は画像アップロードの検証と保存を提供する。
//
// Gatewayはサイズ、拡張子、申告MIME、実データのシグネチャを検証し、
// 検証を通過したファイルだけをアップロードディレクトリへアトミックに書き込む。
// 保存先のレコード（ユーザーや投稿）については関知しない。
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hitoshi/poethaven/internal/metrics"
	"github.com/hitoshi/poethaven/internal/model"
)

// PublicPrefix は保存済みファイルを配信するURLパスの接頭辞。
const PublicPrefix = "/uploads/"

// sniffLen はシグネチャ判定に読み込む先頭バイト数。mimetypeの既定値と同じ。
const sniffLen = 3072

// File はリクエストから取り出したアップロードファイル。
// Sizeはクライアント申告値であり、実際の書き込み量でも再検証する。
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Policy はファイル種別ごとの許可リストと保存名の接頭辞。
type Policy struct {
	Prefix     string
	Extensions []string
	MIMETypes  []string
}

// AvatarPolicy はアバター画像用のポリシー。webpも許可する。
var AvatarPolicy = Policy{
	Prefix:     "avatar",
	Extensions: []string{".jpeg", ".jpg", ".png", ".gif", ".webp"},
	MIMETypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
}

// PostImagePolicy は画像投稿用のポリシー。
var PostImagePolicy = Policy{
	Prefix:     "post",
	Extensions: []string{".jpeg", ".jpg", ".png", ".gif"},
	MIMETypes:  []string{"image/jpeg", "image/png", "image/gif"},
}

// allowedList はエラーメッセージ用の拡張子一覧（"jpeg, jpg, png, gif"）を返す。
func (p Policy) allowedList() string {
	names := make([]string, len(p.Extensions))
	for i, ext := range p.Extensions {
		names[i] = strings.TrimPrefix(ext, ".")
	}
	return strings.Join(names, ", ")
}

func (p Policy) allowsMIME(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return slices.Contains(p.MIMETypes, strings.ToLower(mediaType))
}

func (p Policy) allowsDetected(detected *mimetype.MIME) bool {
	for _, m := range p.MIMETypes {
		if detected.Is(m) {
			return true
		}
	}
	return false
}

// Gateway はアップロードファイルの検証と保存を行う。
type Gateway struct {
	dir     string
	maxSize int64
	metrics metrics.MetricsCollector
	now     func() time.Time
	suffix  func() int64
}

// NewGateway はGatewayを生成する。dirが存在しない場合は作成する。
func NewGateway(dir string, maxSize int64, mc metrics.MetricsCollector) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Gateway{
		dir:     dir,
		maxSize: maxSize,
		metrics: mc,
		now:     time.Now,
		suffix:  func() int64 { return rand.Int64N(1_000_000_000) },
	}, nil
}

// Dir はアップロードディレクトリを返す。
func (g *Gateway) Dir() string {
	return g.dir
}

// MaxSize は1ファイルあたりの上限バイト数を返す。
func (g *Gateway) MaxSize() int64 {
	return g.maxSize
}

// Accept はファイルを検証して保存し、公開パス（/uploads/<name>）を返す。
// 拒否した場合は*model.APIError（PAYLOAD_TOO_LARGEまたはUNSUPPORTED_MEDIA_TYPE）を返し、
// ディスクには何も残さない。
func (g *Gateway) Accept(policy Policy, f *File) (string, error) {
	if f == nil || f.Content == nil {
		return "", errors.New("upload: nil file")
	}

	if f.Size > g.maxSize {
		return "", g.reject(model.NewPayloadTooLargeError(g.maxSize))
	}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	if !slices.Contains(policy.Extensions, ext) || !policy.allowsMIME(f.ContentType) {
		return "", g.reject(model.NewUnsupportedMediaTypeError(policy.allowedList()))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	if !policy.allowsDetected(mimetype.Detect(head)) {
		return "", g.reject(model.NewUnsupportedMediaTypeError(policy.allowedList()))
	}

	name := fmt.Sprintf("%s-%d-%d%s", policy.Prefix, g.now().UnixMilli(), g.suffix(), ext)
	if err := g.writeAtomic(name, io.MultiReader(bytes.NewReader(head), f.Content)); err != nil {
		return "", err
	}

	g.metrics.RecordUploadAccepted(policy.Prefix)
	slog.Info("upload stored", slog.String("file", name), slog.String("policy", policy.Prefix))
	return PublicPrefix + name, nil
}

// writeAtomic は同じディレクトリの一時ファイルに書き込んでからリネームする。
// 上限超過や書き込み失敗時は一時ファイルを削除する。
func (g *Gateway) writeAtomic(name string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(g.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, io.LimitReader(r, g.maxSize+1))
	if err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if written > g.maxSize {
		return g.reject(model.NewPayloadTooLargeError(g.maxSize))
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close upload: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod upload: %w", err)
	}
	if err = os.Rename(tmpName, filepath.Join(g.dir, name)); err != nil {
		return fmt.Errorf("failed to rename upload: %w", err)
	}
	return nil
}

// Remove は保存済みファイルを削除する。永続化に失敗した際のロールバックに使う。
// 既に存在しない場合はnilを返す。/uploads/配下以外のパスは拒否する。
func (g *Gateway) Remove(storedPath string) error {
	name, ok := strings.CutPrefix(storedPath, PublicPrefix)
	if !ok || name == "" || name != path.Base(name) {
		return fmt.Errorf("upload: refusing to remove %q", storedPath)
	}
	if err := os.Remove(filepath.Join(g.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

func (g *Gateway) reject(apiErr *model.APIError) error {
	g.metrics.RecordUploadRejected(apiErr.Code)
	slog.Warn("upload rejected", slog.String("code", apiErr.Code), slog.String("reason", apiErr.Message))
	return apiErr
}
