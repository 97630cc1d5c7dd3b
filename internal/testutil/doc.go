// Package testutil 提供跨包测试辅助：条件等待与基于 TCP 的真实 Host。
//
// 只在 _test.go 中引用。
package testutil
