// Package webrtc 实现经中继信令的 WebRTC 传输
//
// 拨号方先通过电路中继连上目标，在中继连接上打开
// /webrtc-signaling/0.0.1 流交换 SDP 与 ICE 候选，随后建立
// 直连的 PeerConnection。数据走一条协商好的数据通道（id 0），
// 再由 Upgrader 完成 Noise 握手与 yamux 多路复用。
// 建立成功后信令流与中继连接都被关闭。
//
// 地址格式：
//
//	拨号  /ip4/.../p2p/<relay>/p2p-circuit/webrtc/p2p/<dest>
//	监听  /webrtc
//
// 连接的远端地址取自选中的 ICE 候选对（/ip4/<ip>/udp/<port>/webrtc），
// 不含 /p2p-circuit 段，因此不被视为受限连接。
package webrtc
