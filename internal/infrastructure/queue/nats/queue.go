package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/infrastructure/resilience"
)

// Queue carries ingestion jobs and events over two JetStream streams. Delivery
// is at-least-once: a handler that does not acknowledge within AckWait is
// presumed dead and its message is redelivered.
type Queue struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	cfg      StreamConfig
	executor *resilience.Executor
	logger   *slog.Logger
}

type StreamConfig struct {
	JobsStream    string
	JobsSubject   string
	EventsStream  string
	EventsSubject string
	AckWait       time.Duration
	BatchSize     int
	BatchWait     time.Duration
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(url string, cfg StreamConfig, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = 5 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docpipe"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	return &Queue{
		conn:     conn,
		js:       js,
		cfg:      cfg,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// EnsureStreams creates the job and event streams if they do not exist yet.
func (q *Queue) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      q.cfg.JobsStream,
			Subjects:  []string{q.cfg.JobsSubject},
			Retention: jetstream.WorkQueuePolicy,
		},
		{
			Name:      q.cfg.EventsStream,
			Subjects:  []string{q.cfg.EventsSubject},
			Retention: jetstream.WorkQueuePolicy,
		},
	}
	for _, sc := range streams {
		if _, err := q.js.CreateOrUpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("ensure stream %s: %w", sc.Name, err)
		}
	}
	return nil
}

func (q *Queue) PublishIngestJob(ctx context.Context, job domain.IngestJob) error {
	return q.publish(ctx, q.cfg.JobsSubject, "jobs.publish", job)
}

func (q *Queue) PublishEvent(ctx context.Context, event domain.Event) error {
	return q.publish(ctx, q.cfg.EventsSubject, "events.publish", event)
}

func (q *Queue) publish(ctx context.Context, subject, operation string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", operation, err)
	}

	call := func(ctx context.Context) error {
		if _, err := q.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("jetstream publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (q *Queue) ConsumeIngestJobs(ctx context.Context, handler func(ctx context.Context, job domain.IngestJob, attempt int) domain.Outcome) error {
	return consume(ctx, q, q.cfg.JobsStream, "processor", func(ctx context.Context, msg jetstream.Msg, attempt int) domain.Outcome {
		var job domain.IngestJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			q.logger.Error("undecodable ingestion job", "error", err)
			return domain.Fatal("undecodable ingestion job")
		}
		return handler(ctx, job, attempt)
	})
}

func (q *Queue) ConsumeEvents(ctx context.Context, handler func(ctx context.Context, event domain.Event, attempt int) domain.Outcome) error {
	return consume(ctx, q, q.cfg.EventsStream, "dispatcher", func(ctx context.Context, msg jetstream.Msg, attempt int) domain.Outcome {
		var event domain.Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			q.logger.Error("undecodable event", "error", err)
			return domain.Fatal("undecodable event")
		}
		return handler(ctx, event, attempt)
	})
}

func consume(ctx context.Context, q *Queue, stream, durable string, handle func(ctx context.Context, msg jetstream.Msg, attempt int) domain.Outcome) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:   durable,
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   q.cfg.AckWait,
		// Redelivery never stops at the consumer level; give-up decisions
		// belong to the handler's Outcome.
		MaxDeliver: -1,
	})
	if err != nil {
		return fmt.Errorf("ensure consumer %s/%s: %w", stream, durable, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		batch, err := consumer.Fetch(q.cfg.BatchSize, jetstream.FetchMaxWait(q.cfg.BatchWait))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			q.logger.Warn("fetch batch failed", "stream", stream, "error", err)
			continue
		}

		for msg := range batch.Messages() {
			attempt := 1
			if meta, err := msg.Metadata(); err == nil {
				attempt = int(meta.NumDelivered)
			}
			outcome := handle(ctx, msg, attempt)
			q.settle(msg, outcome)
		}
		if err := batch.Error(); err != nil {
			q.logger.Warn("batch error", "stream", stream, "error", err)
		}
	}
}

// settle maps the handler's explicit Outcome onto the JetStream ack protocol.
func (q *Queue) settle(msg jetstream.Msg, outcome domain.Outcome) {
	var err error
	switch outcome.Kind {
	case domain.OutcomeRetry:
		err = msg.NakWithDelay(outcome.Delay)
	case domain.OutcomeFatal:
		q.logger.Error("terminating message", "subject", msg.Subject(), "reason", outcome.Reason)
		err = msg.Term()
	default:
		err = msg.Ack()
	}
	if err != nil {
		q.logger.Warn("message settle failed", "subject", msg.Subject(), "error", err)
	}
}
