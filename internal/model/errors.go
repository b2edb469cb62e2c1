package model

import "errors"

var (
	ErrEmptyTitle = errors.New("title is required")
	ErrEmptyBody  = errors.New("content cannot be empty")
)
