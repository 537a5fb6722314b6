package notify

import "errors"

var (
	ErrClosed        = errors.New("notifier closed")
	ErrEventfdCreate = errors.New("create eventfd")
	ErrEventfdWrite  = errors.New("write eventfd")
	ErrEventfdRead   = errors.New("read eventfd")
	ErrEventfdPoll   = errors.New("poll eventfd")
)
