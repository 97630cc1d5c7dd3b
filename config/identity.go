package config

// IdentityConfig 身份配置
//
// 节点身份固定为 Ed25519 密钥。
type IdentityConfig struct {
	// KeyFile 密钥文件路径
	// 为空时在内存中生成临时身份，每次启动 PeerID 都不同
	KeyFile string `json:"key_file,omitempty" yaml:"key_file,omitempty"`

	// Password 密钥文件口令，为空时密钥明文存储
	Password string `json:"-" yaml:"-"`

	// AutoGenerate 密钥文件不存在时是否自动生成
	AutoGenerate bool `json:"auto_generate" yaml:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		AutoGenerate: true,
	}
}

// WithKeyFile 设置密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}
