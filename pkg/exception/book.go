package exception

import "errors"

var (
	ErrInvalidBookState = errors.New("book: invalid level count")
	ErrBookNotPrimed    = errors.New("book: no snapshot applied")
)
