// Package events publishes verdict events after a submission is judged.
// Consumers (leaderboards, notification workers) live outside this
// service; publishing is best-effort and never blocks a judgment.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codecrack-oj/apiserver/config"
	"github.com/codecrack-oj/apiserver/types"
)

// JudgedEvent is emitted once per finalized submission.
type JudgedEvent struct {
	SubmissionID int64                `json:"submission_id"`
	UserID       int                  `json:"user_id"`
	ProblemID    int                  `json:"problem_id"`
	Language     string               `json:"language"`
	Mode         types.SubmissionMode `json:"mode"`
	Verdict      types.JudgeStatus    `json:"verdict"`
	PassedCount  int                  `json:"passed_count"`
	TotalCount   int                  `json:"total_count"`
	JudgedAt     time.Time            `json:"judged_at"`
}

// Publisher delivers verdict events to a broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, event JudgedEvent) error
	Close() error
}

// NewFromConfig constructs the configured publisher. An empty backend
// yields a no-op publisher so callers never need a nil check.
func NewFromConfig(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "":
		return NopPublisher{}, nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NopPublisher discards events. Used when no broker is configured and
// in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, JudgedEvent) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

func encodeEvent(event JudgedEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	attrs := map[string]string{
		"verdict": event.Verdict.String(),
		"mode":    string(event.Mode),
	}
	return data, attrs, nil
}
