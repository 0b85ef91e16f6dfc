package claim

import "errors"

// ErrValidation は入力値の検証エラー全般に一致する基底エラーです。
var ErrValidation = errors.New("claim: validation failed")

var (
	// ErrInvalidID は請求 ID が不正な場合に返却されます。
	ErrInvalidID = newValidationError("claim: invalid id")
	// ErrInvalidLecturerID は講師 ID が不正な場合に返却されます。
	ErrInvalidLecturerID = newValidationError("claim: invalid lecturer id")
	// ErrUnknownLecturer は存在しない講師に対して請求を作成しようとした場合に返却されます。
	ErrUnknownLecturer = newValidationError("claim: unknown lecturer")
	// ErrInvalidPeriod は請求期間が不正な場合に返却されます。
	ErrInvalidPeriod = newValidationError("claim: invalid period")
	// ErrInvalidHours は勤務時間が範囲外の場合に返却されます。
	ErrInvalidHours = newValidationError("claim: hours worked out of range")
	// ErrInvalidRate は時給が範囲外の場合に返却されます。
	ErrInvalidRate = newValidationError("claim: hourly rate out of range")
	// ErrInvalidAction は未定義の操作が指定された場合に返却されます。
	ErrInvalidAction = newValidationError("claim: invalid action")
	// ErrReasonRequired は却下理由が空の場合に返却されます。
	ErrReasonRequired = newValidationError("claim: rejection reason is required")
	// ErrInvalidPageSize は一覧取得時のページサイズが不正な場合に返却されます。
	ErrInvalidPageSize = newValidationError("claim: invalid page size")
	// ErrInvalidPageToken は一覧取得時のページトークンが不正な場合に返却されます。
	ErrInvalidPageToken = newValidationError("claim: invalid page token")
)

var (
	// ErrClaimNotFound は請求が存在しない場合に返却されます。
	ErrClaimNotFound = errors.New("claim: not found")
	// ErrForbidden は呼び出し元の役割に権限がない場合に返却されます。
	ErrForbidden = errors.New("claim: forbidden")
	// ErrInvalidTransition は現在の状態から要求された遷移が定義されていない場合に返却されます。
	ErrInvalidTransition = errors.New("claim: invalid transition")
	// ErrConcurrentUpdate は楽観ロックの競合で更新できなかった場合に返却されます。
	ErrConcurrentUpdate = errors.New("claim: concurrent update")
	// ErrDocumentNotFound は添付書類が存在しない場合に返却されます。
	ErrDocumentNotFound = errors.New("claim: document not found")
)

type validationError struct {
	msg string
}

func newValidationError(msg string) error {
	return &validationError{msg: msg}
}

func (e *validationError) Error() string {
	return e.msg
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}
