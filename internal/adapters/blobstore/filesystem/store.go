package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
)

// Store はローカルディレクトリに添付書類を保存します。
type Store struct {
	root string
}

// New は root 配下に保存する Store を生成します。ディレクトリが無ければ作成します。
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("filesystem: root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Put は一時ファイルに書き込んだあと rename で配置します。
func (s *Store) Put(ctx context.Context, key, _ string, body io.Reader, size int64) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("filesystem: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return fmt.Errorf("filesystem: write %s: %w", key, err)
	}
	if size >= 0 && written != size {
		cleanup()
		return fmt.Errorf("filesystem: write %s: wrote %d of %d bytes", key, written, size)
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("filesystem: place %s: %w", key, err)
	}
	return nil
}

// Open は保存済みの書類を開きます。
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, document.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("filesystem: open %s: %w", key, err)
	}
	return f, nil
}

// Delete は書類を削除します。存在しない場合は何もしません。
func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filesystem: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if err := document.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, key), nil
}
