// Package identity 提供节点身份模块的实现
//
// 身份模块负责：
//   - 从密钥文件加载或生成 Ed25519 私钥
//   - 由公钥派生 PeerID
//   - 使用节点私钥签名
//
// 每个节点在创建时确定身份，运行期间不变。
package identity
