package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrReadOnlyScope は読み取り専用トランザクションの内側で書き込みトランザクションを要求したときに返されます。
var ErrReadOnlyScope = errors.New("postgres: read-write work requested inside a read-only transaction")

var (
	// snapshotTxOptions は一覧・件数・レポート集計を同一スナップショットで読むための設定です。
	snapshotTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	// reviewTxOptions は申請の登録と状態遷移に使います。同時更新は version の比較で検出します。
	reviewTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
)

type claimTxKey struct{}

// claimTx はコンテキストに載せる実行中のトランザクションです。
type claimTx struct {
	tx       pgx.Tx
	readOnly bool
}

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TransactionManager は申請サービスとレポートサービスのトランザクション境界です。
type TransactionManager struct {
	pool txStarter
}

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(pool txStarter) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool}
}

// WithinReadOnly は REPEATABLE READ の読み取り専用トランザクションで fn を実行します。
// 既にトランザクション内であればそれを再利用します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.run(ctx, snapshotTxOptions, fn)
}

// WithinReadWrite は申請の登録・遷移用に READ COMMITTED の読み書きトランザクションで fn を実行します。
// 読み取り専用トランザクションの内側から呼ばれた場合は ErrReadOnlyScope を返します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.run(ctx, reviewTxOptions, fn)
}

func (m *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}

	readOnly := opts.AccessMode == pgx.ReadOnly
	if current, ok := claimTxFromContext(ctx); ok {
		if current.readOnly && !readOnly {
			return ErrReadOnlyScope
		}
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, claimTxKey{}, claimTx{tx: tx, readOnly: readOnly})); err != nil {
		if rbErr := rollback(ctx, tx, "rollback"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		commitErr := fmt.Errorf("postgres: commit: %w", err)
		if errors.Is(err, pgx.ErrTxClosed) {
			return commitErr
		}
		if rbErr := rollback(ctx, tx, "rollback after commit failure"); rbErr != nil {
			return errors.Join(commitErr, rbErr)
		}
		return commitErr
	}
	return nil
}

// rollback は既に閉じたトランザクションのエラーを無視します。
func rollback(ctx context.Context, tx pgx.Tx, op string) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
	return nil
}

func claimTxFromContext(ctx context.Context) (claimTx, bool) {
	if ctx == nil {
		return claimTx{}, false
	}
	current, ok := ctx.Value(claimTxKey{}).(claimTx)
	return current, ok
}

// QueryerFromContext は実行中のトランザクションがあればそれを、なければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if current, ok := claimTxFromContext(ctx); ok {
		return current.tx
	}
	return fallback
}

// Queryer はリポジトリが使うクエリ実行の口で、pgx.Tx と pgxpool.Pool の双方が満たします。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
