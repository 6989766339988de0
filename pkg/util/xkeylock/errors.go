package xkeylock

import "errors"

var (
	// ErrLockNotHeld Unlock 第二次及后续调用时返回。
	ErrLockNotHeld = errors.New("xkeylock: lock not held")
	// ErrClosed Close 后调用 Acquire/TryAcquire 返回。
	ErrClosed = errors.New("xkeylock: closed")
	// ErrLockOccupied TryAcquire 时锁已被占用。
	ErrLockOccupied = errors.New("xkeylock: lock occupied")
	ErrInvalidKey        = errors.New("xkeylock: empty key")
	ErrNilContext        = errors.New("xkeylock: nil context")
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
