package dht

import "errors"

var (
	// ErrEmptyRoutingTable 路由表为空，无法发起查询
	ErrEmptyRoutingTable = errors.New("dht: routing table is empty")
	// ErrNotFound 未找到目标节点
	ErrNotFound = errors.New("dht: peer not found")
	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("dht: already started")
	// ErrNotStarted 未启动
	ErrNotStarted = errors.New("dht: not started")
	// ErrUnexpectedResponse 响应类型与请求不符
	ErrUnexpectedResponse = errors.New("dht: unexpected response type")
)
