package editor

import "errors"

var (
	ErrNoActiveRecord  = errors.New("no active record")
	ErrIndexOutOfRange = errors.New("record index out of range")
	ErrUnknownSection  = errors.New("unknown section")
	ErrRowOutOfRange   = errors.New("row out of range")
	ErrUnknownField    = errors.New("unknown field")
	ErrViewMismatch    = errors.New("view does not belong to the active record")
)
