package ucnode

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// 公共错误定义
var (
	// ErrAssembly 节点组装失败，errors.Is 可匹配任意 *AssemblyError
	ErrAssembly = errors.New("node assembly failed")

	// ErrDial 拨号失败，errors.Is 可匹配任意 *DialError
	ErrDial = errors.New("dial failed")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrNilAddr 拨号地址为空
	ErrNilAddr = errors.New("nil address")
)

// ════════════════════════════════════════════════════════════════════════════
//                              AssemblyError
// ════════════════════════════════════════════════════════════════════════════

// AssemblyError 节点组装失败
//
// 没有可用传输、引导地址或监听地址无效、监听失败、身份加载失败等
// 都在这一步暴露给调用方，不会重试。
type AssemblyError struct {
	// Stage 失败的阶段（options / config / logger / build / start / subscribe）
	Stage string

	// Cause 底层错误
	Cause error
}

// Error 实现 error
func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrAssembly, e.Stage, e.Cause)
}

// Unwrap 返回底层错误
func (e *AssemblyError) Unwrap() error {
	return e.Cause
}

// Is 匹配 ErrAssembly
func (e *AssemblyError) Is(target error) bool {
	return target == ErrAssembly
}

func assemblyError(stage string, err error) error {
	return &AssemblyError{Stage: stage, Cause: err}
}

// ════════════════════════════════════════════════════════════════════════════
//                              DialError
// ════════════════════════════════════════════════════════════════════════════

// DialError 单次拨号失败
type DialError struct {
	// Addr 拨号的目标地址
	Addr multiaddr.Multiaddr

	// Cause 传输或握手返回的错误
	Cause error
}

// Error 实现 error
func (e *DialError) Error() string {
	if e.Addr == nil {
		return fmt.Sprintf("%s: %v", ErrDial, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDial, e.Addr, e.Cause)
}

// Unwrap 返回底层错误
func (e *DialError) Unwrap() error {
	return e.Cause
}

// Is 匹配 ErrDial
func (e *DialError) Is(target error) bool {
	return target == ErrDial
}
