package xreadpref

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingServer 没有满足模式与标签约束的节点。
	ErrNoMatchingServer = errors.New("xreadpref: no matching server")

	// ErrAmbiguousPrimary 快照中存在多个 PRIMARY，按“无主节点”处理。
	// errors.Is(err, ErrNoMatchingServer) 同样成立。
	ErrAmbiguousPrimary = fmt.Errorf("%w: more than one primary", ErrNoMatchingServer)

	ErrInvalidReadPref = errors.New("xreadpref: invalid read preference")
	ErrNilSnapshot     = errors.New("xreadpref: nil snapshot")
)
