package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/tunekit/feedback"
	"github.com/rushteam/tunekit/pkg/logging"
)

func newFeedbackCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Apply user feedback to the collaborative model",
	}
	cmd.AddCommand(newFeedbackConsumeCmd(c), newFeedbackSendCmd(c))
	return cmd
}

func newFeedbackConsumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume feedback events from Kafka until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.withApp(ctx, func(a *app) error {
				return c.consumeFeedback(ctx, a)
			})
		},
	}
}

func newFeedbackSendCmd(c *cli) *cobra.Command {
	var ev feedback.Event
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one feedback event (to Kafka when brokers are configured, otherwise applied locally)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ev.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if len(c.cfg.Kafka.Brokers) > 0 {
				client, err := feedback.NewProducerClient(c.cfg.Kafka)
				if err != nil {
					return err
				}
				defer client.Close()
				return feedback.NewPublisher(client, c.cfg.Kafka.Topic).Publish(ctx, ev)
			}
			return c.withApp(ctx, func(a *app) error {
				if err := a.recommender.Feedback(ctx, ev.UserID, ev.TrackID, ev.Rating); err != nil {
					return err
				}
				return saveModel(a, c.logger)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&ev.UserID, "user", "u", "", "user id")
	f.StringVarP(&ev.TrackID, "track", "t", "", "track id")
	f.Float64VarP(&ev.Rating, "rating", "r", 1, "rating; values > 0 also count as a play")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}

// consumeFeedback 消费到 ctx 取消，然后保存 MF 快照。
func (c *cli) consumeFeedback(ctx context.Context, a *app) error {
	client, err := feedback.NewKafkaClient(c.cfg.Kafka)
	if err != nil {
		return err
	}
	consumer := feedback.NewConsumer(client, a.recommender, c.logger)
	defer consumer.Close()

	c.logger.Info("consuming feedback",
		logging.Strings("brokers", c.cfg.Kafka.Brokers),
		logging.String("topic", c.cfg.Kafka.Topic))
	applied, err := consumer.Run(ctx)
	c.logger.Info("feedback consumer stopped", logging.Int("applied", applied))
	if err != nil {
		return err
	}
	return saveModel(a, c.logger)
}

// saveModel 用独立的 ctx 写快照，进程收到中断信号后仍能保存。
func saveModel(a *app, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.SaveModel(ctx); err != nil {
		return err
	}
	logger.Info("mf snapshot saved")
	return nil
}
