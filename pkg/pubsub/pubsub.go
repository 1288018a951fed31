package pubsub

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Topics published by the analysis runner
const (
	TopicAnalysisStatus = "analysis_status"
	TopicReport         = "report"
)

// ErrClosed is returned after the publisher has been shut down
var ErrClosed = errors.New("publisher is closed")

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // e.g., "analysis_status", "report"
	Type    string          `json:"type"`    // e.g., "loading", "ready", "failed"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string

	// Events is closed when the subscription or the publisher is closed
	Events() <-chan Event

	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a subscription that is closed when ctx is done
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// AnalysisStatus is the payload of TopicAnalysisStatus events
type AnalysisStatus struct {
	RunID   string `json:"runId,omitempty"`
	State   string `json:"state"`   // loading, indexing, analyzing, ready, failed
	Message string `json:"message"` // Human-readable status message
	Step    int    `json:"step"`    // Current step number (1-based)
	Total   int    `json:"total"`   // Total number of steps
}

// ReportSummary is the payload of TopicReport events; clients fetch the full report over HTTP
type ReportSummary struct {
	RunID       string `json:"runId"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Nodes       int    `json:"nodes"`
	Diagnostics int    `json:"diagnostics"`
	HasErrors   bool   `json:"hasErrors"`
}

// NewAnalysisPublisher returns an SSE publisher with the analysis topics configured:
// late subscribers see the latest status and the latest report.
func NewAnalysisPublisher() *SSEPublisher {
	p := NewSSEPublisher()
	p.ConfigureTopic(TopicAnalysisStatus, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicReport, TopicConfig{BufferSize: 1})
	return p
}
