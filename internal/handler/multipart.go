package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/upload"
)

const (
	// multipartOverhead はファイル以外のフィールドとパート境界に許す余裕。
	multipartOverhead = 1 << 20
	// multipartMemory を超えたファイルパートは一時ファイルに退避される。
	multipartMemory = 1 << 20
)

// parseForm はmultipartまたはURLエンコードのフォームを解析する。
// ボディ全体をmaxFileSize+multipartOverheadで打ち切り、超過はPayloadTooLargeとして返す。
// 呼び出し側はcleanupFormで一時ファイルを削除すること。
func parseForm(w http.ResponseWriter, r *http.Request, maxFileSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+multipartOverhead)

	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return model.NewPayloadTooLargeError(maxFileSize)
	}
	return model.NewInvalidArgumentError("Invalid form data")
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// formFile は指定フィールドの最初のファイルをupload.Fileとして開く。
// ファイルが送られていない場合はnilを返す。
func formFile(r *http.Request, field string) (*upload.File, func(), error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, func() {}, nil
	}

	fh := r.MultipartForm.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}

	return &upload.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}, func() { f.Close() }, nil
}

// optionalFormValue はフィールドが送信された場合のみ値へのポインタを返す。
func optionalFormValue(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
