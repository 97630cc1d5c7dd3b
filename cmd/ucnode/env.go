package main

import (
	"os"
	"strconv"

	"github.com/dep2p/go-ucnode/config"
)

// ============================================================================
//                              环境变量覆盖
// ============================================================================

// envPrefix 环境变量前缀
const envPrefix = "UCNODE_"

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 支持的环境变量：
//   - UCNODE_LISTEN_ADDRS: 监听地址（逗号分隔）
//   - UCNODE_BOOTSTRAP_PEERS: 引导节点（逗号分隔）
//   - UCNODE_IDENTITY_KEY_FILE: 身份密钥文件
//   - UCNODE_LOG_LEVEL: 日志级别
//   - UCNODE_LOG_FILE: 日志文件路径
//   - UCNODE_TOPIC: 聊天主题
//   - UCNODE_ENABLE_AUTONAT: 启用 AutoNAT
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + "LISTEN_ADDRS"); v != "" {
		cfg.Transport.ListenAddrs = splitList(v)
	}
	if v := os.Getenv(envPrefix + "BOOTSTRAP_PEERS"); v != "" {
		cfg.Discovery.BootstrapPeers = splitList(v)
	}
	if v := os.Getenv(envPrefix + "IDENTITY_KEY_FILE"); v != "" {
		cfg.Identity = cfg.Identity.WithKeyFile(v)
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(envPrefix + "TOPIC"); v != "" {
		cfg.Topic = v
	}
	if v := os.Getenv(envPrefix + "ENABLE_AUTONAT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoNAT.Enable = b
		}
	}
}
