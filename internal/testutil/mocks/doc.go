// Package mocks 提供测试用的接口模拟实现
//
// 每个 Mock 以 XxxFunc 字段覆盖方法行为，未设置时使用简单默认值，
// 并记录调用次数供断言。
package mocks
