// Package lib 包含基础设施工具库
//
// 本目录包含与节点组件无关的通用工具库：
//
//   - crypto: 密码学原语（Ed25519 密钥、签名、PeerID、密钥文件）
//   - multiaddr: 多地址格式解析
//   - log: 日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - interfaces/: 组件能力接口
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
package lib
