package claim

import "context"

// Repository は請求の永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, claim *Claim) (*Claim, error)
	FindByID(ctx context.Context, id string) (*Claim, error)
	// Update は claim.Version が保存済みのバージョンと一致する場合のみ更新し、バージョンを 1 進めます。
	// 一致しない場合は ErrConcurrentUpdate を返します。
	Update(ctx context.Context, claim *Claim) (*Claim, error)
	List(ctx context.Context, filter ListClaimsFilter) ([]*Claim, string, error)
	ListAll(ctx context.Context) ([]*Claim, error)
	AppendTransition(ctx context.Context, t *Transition) error
	ListTransitions(ctx context.Context, claimID string) ([]*Transition, error)
}

// ListClaimsFilter は一覧取得時の検索条件を表します。
type ListClaimsFilter struct {
	LecturerID *string
	Statuses   []Status
	Limit      int
	Offset     int
}
