package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxSizeBytes はアップロード可能な書類サイズの既定上限 (5MiB) です。
const DefaultMaxSizeBytes int64 = 5 * 1024 * 1024

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZIP  = "application/zip"
	contentTypeBin  = "application/octet-stream"
)

var contentTypes = map[string]string{
	".pdf":  contentTypePDF,
	".docx": contentTypeDOCX,
	".xlsx": contentTypeXLSX,
}

var (
	// ErrEmptyDocument はファイル名または内容が空の場合に返却されます。
	ErrEmptyDocument = errors.New("document: empty document")
	// ErrDocumentTooLarge はサイズ上限を超えた場合に返却されます。
	ErrDocumentTooLarge = errors.New("document: file too large")
	// ErrUnsupportedType は許可されていない拡張子の場合に返却されます。
	ErrUnsupportedType = errors.New("document: only PDF, DOCX and XLSX files are allowed")
	// ErrContentMismatch は内容が拡張子と一致しない場合に返却されます。
	ErrContentMismatch = errors.New("document: content does not match file extension")
	// ErrBlobNotFound は保存先にオブジェクトが存在しない場合に返却されます。
	ErrBlobNotFound = errors.New("document: blob not found")
	// ErrInvalidKey は保存キーが不正な場合に返却されます。
	ErrInvalidKey = errors.New("document: invalid key")
)

// Upload はアップロードされた書類です。
type Upload struct {
	FileName string
	Content  []byte
}

// BlobStore は書類の保存先を抽象化します。
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Open は呼び出し側が必ず Close する ReadCloser を返します。
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Policy はアップロード書類の受け入れ条件です。
type Policy struct {
	MaxSizeBytes int64
}

// DefaultPolicy は既定の受け入れ条件を返します。
func DefaultPolicy() Policy {
	return Policy{MaxSizeBytes: DefaultMaxSizeBytes}
}

// Validate は書類を検証し、正規化した拡張子を返します。
func (p Policy) Validate(u Upload) (string, error) {
	name := strings.TrimSpace(u.FileName)
	if name == "" || len(u.Content) == 0 {
		return "", ErrEmptyDocument
	}

	limit := p.MaxSizeBytes
	if limit <= 0 {
		limit = DefaultMaxSizeBytes
	}
	if int64(len(u.Content)) > limit {
		return "", fmt.Errorf("size %d exceeds %d bytes: %w", len(u.Content), limit, ErrDocumentTooLarge)
	}

	ext := strings.ToLower(filepath.Ext(name))
	want, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("extension %q: %w", ext, ErrUnsupportedType)
	}

	if !sniffMatches(want, u.Content) {
		return "", fmt.Errorf("expected %s: %w", want, ErrContentMismatch)
	}

	return ext, nil
}

// OOXML は zip として検出される場合があるため zip も受け入れます。
func sniffMatches(want string, content []byte) bool {
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
		if want != contentTypePDF && m.Is(contentTypeZIP) {
			return true
		}
	}
	return false
}

// ContentType は保存キーの拡張子から Content-Type を返します。
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return contentTypeBin
}

// NewKey は拡張子付きの一意な保存キーを生成します。
func NewKey(ext string) string {
	return uuid.NewString() + ext
}

// ValidateKey は保存キーがディレクトリ区切りや相対参照を含まないことを確認します。
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
	}
	return nil
}
