package lecturer

import (
	"context"
	"fmt"
	"strings"
)

// UseCase は講師参照ユースケースの公開インターフェースです。
type UseCase interface {
	GetLecturer(ctx context.Context, id string) (*Lecturer, error)
}

// Service は講師情報の参照をまとめます。
type Service struct {
	dir Directory
}

// NewService は Service を生成します。
func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// GetLecturer は ID で講師を取得します。
func (s *Service) GetLecturer(ctx context.Context, id string) (*Lecturer, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	return s.dir.FindByID(ctx, trimmed)
}

// Count は登録講師数を返します。
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.dir.Count(ctx)
}
