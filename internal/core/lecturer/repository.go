package lecturer

import "context"

// Directory は講師情報の参照を行うインターフェースです。
type Directory interface {
	FindByID(ctx context.Context, id string) (*Lecturer, error)
	Count(ctx context.Context) (int, error)
}
