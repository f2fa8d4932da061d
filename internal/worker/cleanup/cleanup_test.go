package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockRefLister はUploadReferenceListerのモック実装。
type mockRefLister struct {
	refs []string
	err  error
}

func (m *mockRefLister) ListUploadReferences(ctx context.Context) ([]string, error) {
	return m.refs, m.err
}

type recordingMetrics struct {
	orphans []int
}

func (m *recordingMetrics) RecordHTTPStatus(int)               {}
func (m *recordingMetrics) RecordRequestLatency(time.Duration) {}
func (m *recordingMetrics) RecordRegistration()                {}
func (m *recordingMetrics) RecordLoginFailure()                {}
func (m *recordingMetrics) RecordPostCreated(string)           {}
func (m *recordingMetrics) RecordUploadAccepted(string)        {}
func (m *recordingMetrics) RecordUploadRejected(string)        {}
func (m *recordingMetrics) RecordOrphansRemoved(n int)         { m.orphans = append(m.orphans, n) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// writeFile はファイルを作成し、更新時刻をageだけ過去にずらす。
func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestCleanupJob_Run_RemovesOnlyOldUnreferencedFiles(t *testing.T) {
	dir := t.TempDir()
	referenced := writeFile(t, dir, "avatar-1-1.png", 72*time.Hour)
	postImage := writeFile(t, dir, "post-2-2.jpg", 72*time.Hour)
	orphan := writeFile(t, dir, "avatar-3-3.png", 72*time.Hour)
	staleTemp := writeFile(t, dir, ".upload-123", 72*time.Hour)
	fresh := writeFile(t, dir, "post-4-4.png", time.Minute)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	refs := &mockRefLister{refs: []string{"/uploads/avatar-1-1.png", "/uploads/post-2-2.jpg"}}
	mc := &recordingMetrics{}
	var buf bytes.Buffer
	job := NewCleanupJob(refs, dir, 24*time.Hour, mc, newTestLogger(&buf))

	removed, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if !exists(referenced) || !exists(postImage) {
		t.Error("参照中のファイルが削除された")
	}
	if !exists(fresh) {
		t.Error("猶予期間内のファイルが削除された")
	}
	if exists(orphan) || exists(staleTemp) {
		t.Error("孤立ファイルが残っている")
	}
	if !exists(filepath.Join(dir, "nested")) {
		t.Error("ディレクトリは対象外")
	}
	if len(mc.orphans) != 1 || mc.orphans[0] != 2 {
		t.Errorf("RecordOrphansRemoved = %v, want [2]", mc.orphans)
	}
}

func TestCleanupJob_Run_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "avatar-3-3.png", 48*time.Hour)
	job := NewCleanupJob(&mockRefLister{}, dir, 24*time.Hour, nil, newTestLogger(&bytes.Buffer{}))

	if n, err := job.Run(context.Background()); err != nil || n != 1 {
		t.Fatalf("1回目: removed = %d, err = %v", n, err)
	}
	if n, err := job.Run(context.Background()); err != nil || n != 0 {
		t.Fatalf("2回目: removed = %d, err = %v", n, err)
	}
}

// 参照の取得に失敗した場合は何も削除しない
func TestCleanupJob_Run_ListError_DeletesNothing(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "avatar-3-3.png", 48*time.Hour)
	dbErr := errors.New("db down")
	job := NewCleanupJob(&mockRefLister{err: dbErr}, dir, 24*time.Hour, nil, newTestLogger(&bytes.Buffer{}))

	_, err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped db error", err)
	}
	if !exists(p) {
		t.Error("参照取得の失敗時にファイルが削除された")
	}
}

func TestCleanupJob_Run_MissingDirectory_IsNoop(t *testing.T) {
	job := NewCleanupJob(&mockRefLister{}, filepath.Join(t.TempDir(), "absent"), time.Hour, nil, newTestLogger(&bytes.Buffer{}))

	n, err := job.Run(context.Background())
	if err != nil || n != 0 {
		t.Errorf("removed = %d, err = %v, want 0, nil", n, err)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.png", 48*time.Hour)
	writeFile(t, dir, "b.png", 48*time.Hour)
	var buf bytes.Buffer
	job := NewCleanupJob(&mockRefLister{}, dir, 24*time.Hour, nil, newTestLogger(&buf))

	_, _ = job.Run(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["deleted_count"] == float64(2) {
			found = true
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=2 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.png", 48*time.Hour)
	job := NewCleanupJob(&mockRefLister{}, dir, 24*time.Hour, nil, newTestLogger(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !exists(p) {
		t.Error("キャンセル後にファイルが削除された")
	}
}
