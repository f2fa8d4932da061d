package upload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/poethaven/internal/model"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
	webpBytes = append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 32)...)
)

func newTestGateway(t *testing.T, maxSize int64) *Gateway {
	t.Helper()
	g, err := NewGateway(t.TempDir(), maxSize, nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	g.now = func() time.Time { return time.UnixMilli(1700000000123) }
	g.suffix = func() int64 { return 42 }
	return g
}

func newFile(name, contentType string, content []byte) *File {
	return &File{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     bytes.NewReader(content),
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

func TestAccept_ValidPNG_StoresFileAndReturnsPublicPath(t *testing.T) {
	g := newTestGateway(t, 5*1024*1024)

	got, err := g.Accept(PostImagePolicy, newFile("Sunset.PNG", "image/png", pngBytes))
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	want := "/uploads/post-1700000000123-42.png"
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}

	stored, err := os.ReadFile(filepath.Join(g.Dir(), "post-1700000000123-42.png"))
	if err != nil {
		t.Fatalf("stored file not readable: %v", err)
	}
	if !bytes.Equal(stored, pngBytes) {
		t.Error("stored content differs from upload")
	}
	if names := dirEntries(t, g.Dir()); len(names) != 1 {
		t.Errorf("upload dir = %v, want exactly the stored file", names)
	}
}

func TestAccept_MIMEWithParameters_IsAccepted(t *testing.T) {
	g := newTestGateway(t, 1024)

	if _, err := g.Accept(PostImagePolicy, newFile("a.gif", "image/gif; charset=binary", gifBytes)); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
}

func TestAccept_DeclaredSizeOverLimit_ReturnsPayloadTooLarge(t *testing.T) {
	g := newTestGateway(t, 5*1024*1024)

	f := newFile("big.png", "image/png", pngBytes)
	f.Size = 6 * 1024 * 1024

	_, err := g.Accept(PostImagePolicy, f)
	assertAPIErrorCode(t, err, model.ErrCodePayloadTooLarge)

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "File too large (max 5 MB)" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "File too large (max 5 MB)")
	}
	if names := dirEntries(t, g.Dir()); len(names) != 0 {
		t.Errorf("upload dir should be empty, got %v", names)
	}
}

// 申告サイズが小さくても、実データが上限を超えれば拒否され一時ファイルも残らない
func TestAccept_ActualSizeOverLimit_ReturnsPayloadTooLargeAndCleansUp(t *testing.T) {
	g := newTestGateway(t, 4096)

	content := append(append([]byte{}, pngBytes...), make([]byte, 8192)...)
	f := newFile("sneaky.png", "image/png", content)
	f.Size = 10

	_, err := g.Accept(PostImagePolicy, f)
	assertAPIErrorCode(t, err, model.ErrCodePayloadTooLarge)

	if names := dirEntries(t, g.Dir()); len(names) != 0 {
		t.Errorf("upload dir should be empty, got %v", names)
	}
}

func TestAccept_TextRenamedToJPG_ReturnsUnsupportedMediaType(t *testing.T) {
	g := newTestGateway(t, 1024)

	_, err := g.Accept(PostImagePolicy, newFile("poem.jpg", "image/jpeg", []byte("roses are red\nviolets are blue\n")))
	assertAPIErrorCode(t, err, model.ErrCodeUnsupportedMediaType)

	if names := dirEntries(t, g.Dir()); len(names) != 0 {
		t.Errorf("upload dir should be empty, got %v", names)
	}
}

func TestAccept_DisallowedExtension_ReturnsUnsupportedMediaType(t *testing.T) {
	g := newTestGateway(t, 1024)

	_, err := g.Accept(PostImagePolicy, newFile("image.bmp", "image/png", pngBytes))
	assertAPIErrorCode(t, err, model.ErrCodeUnsupportedMediaType)

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "Only jpeg, jpg, png, gif allowed" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestAccept_DisallowedDeclaredMIME_ReturnsUnsupportedMediaType(t *testing.T) {
	g := newTestGateway(t, 1024)

	_, err := g.Accept(PostImagePolicy, newFile("image.png", "text/plain", pngBytes))
	assertAPIErrorCode(t, err, model.ErrCodeUnsupportedMediaType)
}

func TestAccept_WebP_AllowedForAvatarOnly(t *testing.T) {
	g := newTestGateway(t, 1024)

	got, err := g.Accept(AvatarPolicy, newFile("me.webp", "image/webp", webpBytes))
	if err != nil {
		t.Fatalf("avatar webp rejected: %v", err)
	}
	if !strings.HasPrefix(got, "/uploads/avatar-") || !strings.HasSuffix(got, ".webp") {
		t.Errorf("path = %q, want /uploads/avatar-*.webp", got)
	}

	_, err = g.Accept(PostImagePolicy, newFile("post.webp", "image/webp", webpBytes))
	assertAPIErrorCode(t, err, model.ErrCodeUnsupportedMediaType)
}

func TestAccept_NilFile_ReturnsError(t *testing.T) {
	g := newTestGateway(t, 1024)

	if _, err := g.Accept(PostImagePolicy, nil); err == nil {
		t.Fatal("expected error for nil file")
	}
}

func TestRemove_DeletesStoredFile(t *testing.T) {
	g := newTestGateway(t, 1024)

	stored, err := g.Accept(PostImagePolicy, newFile("a.png", "image/png", pngBytes))
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	if err := g.Remove(stored); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if names := dirEntries(t, g.Dir()); len(names) != 0 {
		t.Errorf("upload dir should be empty after Remove, got %v", names)
	}

	// 2回目は既に存在しないためnil
	if err := g.Remove(stored); err != nil {
		t.Errorf("second Remove returned error: %v", err)
	}
}

func TestRemove_RejectsPathsOutsideUploads(t *testing.T) {
	g := newTestGateway(t, 1024)

	for _, p := range []string{"/etc/passwd", "/uploads/../secret", "/uploads/", "uploads/a.png", "/uploads/a/b.png"} {
		if err := g.Remove(p); err == nil {
			t.Errorf("Remove(%q) returned nil, want error", p)
		}
	}
}

func TestNewGateway_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	g, err := NewGateway(dir, 1024, nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	if info, err := os.Stat(g.Dir()); err != nil || !info.IsDir() {
		t.Errorf("upload dir not created: %v", err)
	}
	if g.MaxSize() != 1024 {
		t.Errorf("MaxSize = %d, want 1024", g.MaxSize())
	}
}
