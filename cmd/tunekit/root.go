package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rushteam/tunekit/config"
	"github.com/rushteam/tunekit/pkg/logging"
)

// cli 是命令之间共享的状态，在 PersistentPreRunE 中初始化。
type cli struct {
	configFile string

	cfg    *config.AppConfig
	logger logging.Logger

	// newApp 可在测试中替换
	newApp func(ctx context.Context, cfg *config.AppConfig, logger logging.Logger) (*app, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{newApp: newApp}

	root := &cobra.Command{
		Use:   "tunekit",
		Short: "Hybrid music recommendation, track clustering and offline evaluation",
		Long: `tunekit 组合协同过滤、内容相似度、场景匹配与热度四路召回生成推荐，
对曲目音频特征做 K-Means / 密度聚类，并用留出法离线评估推荐质量。

配置来自 YAML 文件（--config）与 TUNEKIT_* 环境变量，例如 TUNEKIT_REDIS_ADDR。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "config file (YAML)")
	flags.String("dataset", "", "dataset file, overrides dataset.path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")

	root.AddCommand(
		newRecommendCmd(c),
		newClusterCmd(c),
		newEvaluateCmd(c),
		newFeedbackCmd(c),
		newServeMetricsCmd(c),
	)
	return root
}

// flagKeys 是持久 flag 到配置 key 的映射。
var flagKeys = map[string]string{
	"dataset":    "dataset.path",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func (c *cli) init(cmd *cobra.Command) error {
	v, err := config.NewViper(c.configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	cfg, err := config.LoadFromViper(v)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.SetDefault(logger)
	c.cfg = cfg
	c.logger = logger
	return nil
}

// bindFlags 只绑定用户显式设置过的 flag，未设置的保留文件/环境变量中的值。
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// withApp 组装 app，执行 fn 后释放资源。
func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := c.newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("close app failed", logging.Err(err))
		}
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
