package queue

import "errors"

var (
	ErrStorageNil          = errors.New("queue: storage is required")
	ErrPayloadNil          = errors.New("queue: payload is required")
	ErrNoHandlerRegistered = errors.New("queue: no handler registered for task")
	ErrDuplicateHandler    = errors.New("queue: handler already registered for task")
)
