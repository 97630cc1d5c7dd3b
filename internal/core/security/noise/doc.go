// Package noise 实现 Noise 协议安全传输
//
// 本实现遵循 libp2p-noise 规范：
// https://github.com/libp2p/specs/blob/master/noise/README.md
//
// Noise XX 握手流程：
//
//	-> e                                      (发起者发送临时公钥)
//	<- e, ee, s, es, payload                  (响应者发送临时公钥、静态公钥、payload)
//	-> s, se, payload                         (发起者发送静态公钥、payload)
//
// 静态密钥为每个 Transport 独立生成的 X25519 密钥，
// payload 携带身份公钥及其对静态公钥的签名：
//
//	identity_key: protobuf 编码的 Ed25519 身份公钥
//	identity_sig: Sign("noise-libp2p-static-key:" + x25519_static_pubkey)
//
// 握手消息与传输消息都以 2 字节大端长度作为帧头。
package noise
