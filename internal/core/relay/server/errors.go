package server

import "errors"

var (
	// ErrReservationLimit 预约数已达上限
	ErrReservationLimit = errors.New("relay server: too many reservations")

	// ErrCircuitLimit 目标节点电路数已达上限
	ErrCircuitLimit = errors.New("relay server: too many circuits for peer")

	// ErrRateLimited 请求过于频繁
	ErrRateLimited = errors.New("relay server: rate limited")
)
