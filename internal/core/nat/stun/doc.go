// Package stun 实现 STUN 客户端
//
// stun 使用 STUN 协议（RFC 5389）Binding 请求获取节点的公网 IP 地址和端口，
// 结果在有效期内缓存。多个服务器依次尝试，每个服务器按指数退避重试。
//
// # 使用示例
//
//	client := stun.NewClient([]string{"stun.l.google.com:19302"})
//	addr, err := client.GetExternalAddr(ctx)
package stun
