// Package config 提供节点的统一配置
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 或 YAML 加载和保存配置
//   - 结构体标签校验（validator）加上各子配置的交叉校验
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Transport.EnableWebRTC = false
//	cfg.Relay.DiscoverRelays = 3
//
//	// 从文件加载（按扩展名选择 JSON 或 YAML）
//	cfg, err := config.LoadFile("node.yaml")
package config
