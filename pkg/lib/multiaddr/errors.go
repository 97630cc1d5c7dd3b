package multiaddr

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	// ErrInvalidMultiaddr 地址格式无效（所有 *ParseError 均满足 errors.Is）
	ErrInvalidMultiaddr = errors.New("invalid multiaddr")

	// ErrUnknownProtocol 未知协议名或协议代码
	ErrUnknownProtocol = errors.New("unknown protocol")

	// ErrProtocolNotFound 地址中不包含指定协议
	ErrProtocolNotFound = errors.New("protocol not found in multiaddr")
)

// ParseError 地址解析错误
//
// Input 保存导致失败的原始输入（字符串形式，二进制输入时为十六进制）。
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

// Error 实现 error 接口
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse multiaddr %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse multiaddr %q: %s", e.Input, e.Reason)
}

// Unwrap 返回底层错误
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrInvalidMultiaddr) 对所有解析错误成立
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidMultiaddr
}

func parseErr(input, reason string, err error) *ParseError {
	return &ParseError{Input: input, Reason: reason, Err: err}
}
