// v1
// internal/stream/publisher.go

// Package stream publishes newly surfaced time records to a Kafka topic so
// external live-timing consumers can follow the race without polling. The
// publisher is optional: with no brokers configured every call is a no-op,
// and core semantics never depend on it.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/etkk55/enduro-backend/internal/models"
)

// Config carries the runtime options for the live-timing stream.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// messageWriter is the slice of kafka.Writer the publisher uses; tests
// substitute a recording fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type request struct {
	key   []byte
	value []byte
}

// Publisher drains an in-process queue into Kafka on a single worker
// goroutine so HTTP handlers never block on the broker.
type Publisher struct {
	cfg    Config
	log    *slog.Logger
	writer messageWriter

	queue    chan request
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

const queueSize = 256

var errQueueFull = errors.New("live stream queue full; dropping record")

// envelope is the JSON document written per released time record.
type envelope struct {
	EventID    string              `json:"eventId"`
	Source     string              `json:"source"` // import | simulator
	Time       models.ReleasedTime `json:"time"`
	ReleasedAt time.Time           `json:"releasedAt"`
}

// NewPublisher builds the publisher. A disabled config returns a publisher
// whose methods all succeed without doing anything.
func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	log = log.With(slog.String("component", "live_stream"))
	if !cfg.Enabled {
		log.Info("live_stream_disabled")
		return &Publisher{cfg: cfg, log: log}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("live stream topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(cfg, log, writer), nil
}

func newPublisher(cfg Config, log *slog.Logger, writer messageWriter) *Publisher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		cfg:    cfg,
		log:    log,
		writer: writer,
		queue:  make(chan request, queueSize),
		cancel: cancel,
	}
	p.wg.Add(1)
	go p.run(ctx)
	log.Info("live_stream_started", slog.String("topic", cfg.Topic), slog.String("brokers", strings.Join(cfg.Brokers, ",")))
	return p
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.writer.WriteMessages(writeCtx, kafka.Message{Key: req.key, Value: req.value})
			cancel()
			if err != nil {
				p.log.Warn("live_stream_write_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// PublishTimes enqueues the given records. Records are dropped (with a
// warning) rather than blocking when the queue is full; the stream is a
// convenience feed, not a system of record.
func (p *Publisher) PublishTimes(eventID, source string, times []models.ReleasedTime) {
	if p.writer == nil {
		return
	}
	now := time.Now().UTC()
	for _, rec := range times {
		value, err := json.Marshal(envelope{EventID: eventID, Source: source, Time: rec, ReleasedAt: now})
		if err != nil {
			p.log.Warn("live_stream_encode_failed", slog.String("error", err.Error()))
			continue
		}
		select {
		case p.queue <- request{key: []byte(eventID), value: value}:
		default:
			p.log.Warn("live_stream_drop", slog.String("error", errQueueFull.Error()))
		}
	}
}

// Close stops the worker and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	var err error
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		err = p.writer.Close()
		p.log.Info("live_stream_stopped")
	})
	return err
}
