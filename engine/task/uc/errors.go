package uc

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
)
