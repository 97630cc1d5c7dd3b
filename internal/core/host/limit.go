package host

import (
	"golang.org/x/sync/semaphore"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
)

// LimitHandler 限制处理器同时处理的入站流数量
//
// 超出上限的流被直接重置。max <= 0 表示不限制。
func LimitHandler(max int, h pkgif.StreamHandler) pkgif.StreamHandler {
	if max <= 0 {
		return h
	}
	sem := semaphore.NewWeighted(int64(max))
	return func(s pkgif.Stream) {
		if !sem.TryAcquire(1) {
			_ = s.Reset()
			return
		}
		defer sem.Release(1)
		h(s)
	}
}
