package liveness

import "errors"

var (
	// ErrNilHost 未提供 Host
	ErrNilHost = errors.New("liveness: nil host")

	// ErrAlreadyStarted 重复启动
	ErrAlreadyStarted = errors.New("liveness: already running")
	// ErrNotStarted 服务未运行时调用
	ErrNotStarted = errors.New("liveness: not running")

	// ErrWatchNotFound 对端没有注册的监听
	ErrWatchNotFound = errors.New("liveness: no watch registered for peer")
)
