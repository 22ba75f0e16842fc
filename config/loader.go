package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix 环境变量前缀，例如 TUNEKIT_REDIS_ADDR。
const envPrefix = "TUNEKIT"

// newViper 返回预置了 YAML、TUNEKIT_ 前缀与 "." → "_" 替换的 viper 实例。
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindDefaults(v)
	return v
}

// bindDefaults 登记所有可被环境变量覆盖的 key。viper 只对已知 key 应用 AutomaticEnv。
func bindDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("version", d.Version)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("dataset.path", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", d.Postgres.Table)
	v.SetDefault("object_store.endpoint", "")
	v.SetDefault("object_store.access_key_id", "")
	v.SetDefault("object_store.secret_access_key", "")
	v.SetDefault("object_store.bucket", "")
	v.SetDefault("feast.endpoint", "")
	v.SetDefault("feast.project", "")
	v.SetDefault("feast.token", "")
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.group", d.Kafka.Group)
	v.SetDefault("summarizer.endpoint", "")
	v.SetDefault("summarizer.token", "")
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("recommender.pipeline_path", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", d.Metrics.Path)
	// regularization 允许显式写 0，缺省值必须在反序列化前给出。
	v.SetDefault("mf.regularization", d.MF.Regularization)
}

// Load 读取 YAML 配置文件，合并 TUNEKIT_* 环境变量，补默认值并校验。
// path 为空时只使用环境变量与默认值。
func Load(path string) (*AppConfig, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return unmarshalAndFinalize(v)
}

// NewViper 返回已读入 path（可为空）的 viper 实例，调用方可以继续绑定 flag。
func NewViper(path string) (*viper.Viper, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return v, nil
}

// LoadFromViper 从外部 viper 实例加载（CLI 的 flag 绑定走这里）。
func LoadFromViper(v *viper.Viper) (*AppConfig, error) {
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
