// Package worker consumes calculation.requested events and computes the
// queued runs. Concurrency is one group consumer per slot, so Kafka spreads
// partitions across them and each partition keeps its commit order.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// Consumer is the subset of *kafka.Consumer the runner drives.
type Consumer interface {
	Subscribe(topic string, h kafka.MessageHandler)
	Start(ctx context.Context) error
	Close() error
}

// JobHandler computes one queued run. lighting.Service satisfies it.
type JobHandler interface {
	HandleJob(ctx context.Context, payload *kafka.CalculationRequestedPayload) error
}

// ConsumerFactory builds the consumer for slot index.
type ConsumerFactory func(index int) (Consumer, error)

// Runner owns the consumer slots.
type Runner struct {
	concurrency int
	jobs        JobHandler
	newConsumer ConsumerFactory
	metrics     *prometheus.AppMetrics
	logger      logging.Logger
}

func NewRunner(cfg config.WorkerConfig, jobs JobHandler, newConsumer ConsumerFactory, metrics *prometheus.AppMetrics, log logging.Logger) *Runner {
	if log == nil {
		log = logging.NewNopLogger()
	}
	n := cfg.Concurrency
	if n < 1 {
		n = 1
	}
	return &Runner{
		concurrency: n,
		jobs:        jobs,
		newConsumer: newConsumer,
		metrics:     metrics,
		logger:      log.Named("worker"),
	}
}

// HandleMessage runs the job carried by msg. Messages that can never succeed
// are logged and acknowledged; job errors are returned so the consumer
// retries and eventually dead-letters them.
func (r *Runner) HandleMessage(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.DecodeEnvelope(msg)
	if err != nil {
		r.drop(msg, "malformed envelope", err)
		return nil
	}
	if env.EventType != kafka.EventCalculationRequested {
		r.drop(msg, "unexpected event type", errors.Newf(errors.ErrCodeBadRequest, "event type %q", env.EventType))
		return nil
	}
	var payload kafka.CalculationRequestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		r.drop(msg, "malformed payload", err)
		return nil
	}
	if payload.RunID == "" {
		r.drop(msg, "payload has no run id", errors.New(errors.ErrCodeBadRequest, "missing run_id"))
		return nil
	}

	done := prometheus.TrackActiveJob(r.metrics)
	defer done()
	return r.jobs.HandleJob(ctx, &payload)
}

func (r *Runner) drop(msg *kafka.Message, reason string, err error) {
	r.logger.Error("dropping message: "+reason,
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))
	prometheus.RecordError(r.metrics, "worker", errors.GetCode(err).String())
}

// Run starts every slot and blocks until ctx ends, then closes them. A slot
// that fails to start closes the ones already running.
func (r *Runner) Run(ctx context.Context) error {
	consumers := make([]Consumer, 0, r.concurrency)
	for i := 0; i < r.concurrency; i++ {
		c, err := r.newConsumer(i)
		if err != nil {
			r.closeAll(consumers)
			return fmt.Errorf("consumer %d: %w", i, err)
		}
		c.Subscribe(kafka.TopicCalculationRequested, r.HandleMessage)
		consumers = append(consumers, c)
		if err := c.Start(ctx); err != nil {
			r.closeAll(consumers)
			return fmt.Errorf("consumer %d: %w", i, err)
		}
	}
	r.logger.Info("worker started", logging.Int("consumers", len(consumers)))

	<-ctx.Done()
	r.logger.Info("worker stopping")
	return r.closeAll(consumers)
}

func (r *Runner) closeAll(consumers []Consumer) error {
	var g errgroup.Group
	for _, c := range consumers {
		c := c
		g.Go(c.Close)
	}
	err := g.Wait()
	if err != nil {
		r.logger.Warn("consumer close failed", logging.Err(err))
	}
	return err
}
