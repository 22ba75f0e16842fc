package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/metrics"
	"github.com/rushteam/tunekit/pkg/logging"
)

// Applier 应用一条反馈，hybrid.Recommender 实现了它。
type Applier interface {
	Feedback(ctx context.Context, userID, trackID string, rating float64) error
}

// Fetcher 是 Consumer 需要的最小 Kafka 客户端接口，*kgo.Client 实现了它。
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
	Close()
}

// Config Kafka 消费配置
type Config struct {
	Brokers  []string `mapstructure:"brokers" yaml:"brokers"`
	Topic    string   `mapstructure:"topic" yaml:"topic"`
	Group    string   `mapstructure:"group" yaml:"group"`
	ClientID string   `mapstructure:"client_id" yaml:"client_id"`
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "tunekit.feedback"
	}
	if c.Group == "" {
		c.Group = "tunekit-feedback"
	}
	if c.ClientID == "" {
		c.ClientID = "tunekit"
	}
	return c
}

// NewKafkaClient 按配置创建消费者组客户端，关闭自动提交，由 Consumer 在处理完每批后提交。
func NewKafkaClient(cfg Config) (*kgo.Client, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, core.InvalidInput(core.ModuleRecommend, "feedback: kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("feedback: create kafka client: %w", err)
	}
	return client, nil
}

// NewProducerClient 创建只用于发送的客户端，不加入消费者组。
func NewProducerClient(cfg Config) (*kgo.Client, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, core.InvalidInput(core.ModuleRecommend, "feedback: kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("feedback: create kafka producer: %w", err)
	}
	return client, nil
}

// Consumer 消费反馈 topic。
// 非法事件记录日志并跳过；Applier 的失败同样只记录日志，不阻塞后续消息。
type Consumer struct {
	client  Fetcher
	applier Applier
	logger  logging.Logger
}

func NewConsumer(client Fetcher, applier Applier, logger logging.Logger) *Consumer {
	return &Consumer{client: client, applier: applier, logger: logging.OrNop(logger).Named("feedback")}
}

// HandleRecord 处理单条消息。
func (c *Consumer) HandleRecord(ctx context.Context, r *kgo.Record) error {
	ev, err := Decode(r.Value)
	if err != nil {
		metrics.FeedbackEvents.WithLabelValues("invalid").Inc()
		c.logger.Warn("invalid feedback event",
			logging.String("topic", r.Topic),
			logging.Int("partition", int(r.Partition)),
			logging.Int64("offset", r.Offset),
			logging.Err(err))
		return err
	}
	if err := c.applier.Feedback(ctx, ev.UserID, ev.TrackID, ev.Rating); err != nil {
		c.logger.Warn("apply feedback failed",
			logging.String("user_id", ev.UserID),
			logging.String("track_id", ev.TrackID),
			logging.Err(err))
		return err
	}
	return nil
}

// Run 持续拉取直到 ctx 取消或客户端关闭，返回成功应用的事件数。
func (c *Consumer) Run(ctx context.Context) (int, error) {
	applied := 0
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return applied, nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("kafka fetch error",
				logging.String("topic", topic),
				logging.Int("partition", int(partition)),
				logging.Err(err))
		})
		fetches.EachRecord(func(r *kgo.Record) {
			if c.HandleRecord(ctx, r) == nil {
				applied++
			}
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit offsets failed", logging.Err(err))
		}
	}
}

// Close 关闭底层客户端。
func (c *Consumer) Close() { c.client.Close() }

// Publisher 同步发送反馈事件，供 CLI 与测试数据注入使用。
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(client *kgo.Client, topic string) *Publisher {
	if topic == "" {
		topic = Config{}.withDefaults().Topic
	}
	return &Publisher{client: client, topic: topic}
}

// Publish 以 userID 为 key 发送，同一用户的事件保持有序。
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("feedback: encode event: %w", err)
	}
	return p.client.ProduceSync(ctx, NewRecord(p.topic, ev.UserID, data)).FirstErr()
}

// NewRecord 构造一条反馈消息。
func NewRecord(topic, key string, value []byte) *kgo.Record {
	return &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
}
