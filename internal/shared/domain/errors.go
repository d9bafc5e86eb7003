package domain

import "errors"

var (
	ErrNoWorkInContext        = errors.New("no unit of work in context")
	ErrWorkFinished           = errors.New("unit of work already finished")
	ErrOutboxMessageNotFound  = errors.New("outbox message not found")
	ErrOutboxMessageNotFailed = errors.New("outbox message is not dead-lettered")
)
