// Package events announces completed extraction batches to interested
// listeners over Redis pub/sub or an in-process bus.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"

	DefaultChannel = "batches.completed"
)

// BatchCompleted is published once per finished batch.
type BatchCompleted struct {
	BatchID        string    `json:"batch_id"`
	Source         string    `json:"source"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	Figures        int       `json:"figures"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	StatFile       string    `json:"stat_file,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewBatchCompleted summarises result as an event.
func NewBatchCompleted(result *domain.BatchResult) BatchCompleted {
	return BatchCompleted{
		BatchID:        result.BatchID,
		Source:         result.Source,
		Total:          result.Total,
		Succeeded:      result.Succeeded,
		Failed:         result.Failed,
		Figures:        result.TotalFigures(),
		ElapsedSeconds: result.ElapsedSeconds,
		StatFile:       result.StatFile,
		CompletedAt:    time.Now().UTC(),
	}
}

// Publisher delivers batch events.
type Publisher interface {
	Publish(ctx context.Context, event BatchCompleted) error
	Close() error
}

// Subscriber is implemented by publishers that can also deliver events back
// to listeners in this process. The returned func stops the subscription; the
// channel is closed once it has stopped.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan BatchCompleted, func(), error)
}

var (
	_ Subscriber = (*MemoryPublisher)(nil)
	_ Subscriber = (*RedisPublisher)(nil)
)

// Config selects and configures a publisher.
type Config struct {
	Driver  string
	Channel string
	Redis   RedisConfig
}

// New builds the publisher named by cfg.Driver.
func New(cfg Config) (Publisher, error) {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	switch cfg.Driver {
	case DriverNone, "":
		return NopPublisher{}, nil
	case DriverMemory:
		return NewMemoryPublisher(), nil
	case DriverRedis:
		p, err := NewRedisPublisher(cfg.Redis, channel)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown events driver %q", cfg.Driver), nil)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BatchCompleted) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
