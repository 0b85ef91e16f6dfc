package lecturer

import "errors"

var (
	// ErrLecturerNotFound は講師が存在しない場合に返却されます。
	ErrLecturerNotFound = errors.New("lecturer: not found")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("lecturer: invalid id")
)
