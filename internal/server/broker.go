package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/retrofitforge/twin/internal/model"
)

// SSE event types sent on /api/presentation/events.
const (
	EventStep      = "step"
	EventSection   = "section"
	EventCompleted = "completed"
	EventStopped   = "stopped"
	EventStatus    = "status"
	EventMetrics   = "metrics"
)

// Broker fans presentation and metrics events out to SSE subscribers.
// It satisfies the sequencer's Observer interface, and its PublishMetrics
// method is the live metrics source's per-tick hook.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

// NewBroker creates a new SSE broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done. After Close the returned
// channel is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64) // Buffer to avoid blocking the broadcast.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return // already closed by Close
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Subscribers returns the number of connected clients.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close disconnects every subscriber. Later broadcasts are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}

// StepActivated implements the sequencer Observer.
func (b *Broker) StepActivated(step model.NarrationStep) {
	b.publish(EventStep, step)
}

// SectionChanged implements the sequencer Observer.
func (b *Broker) SectionChanged(sectionID int) {
	b.publish(EventSection, map[string]int{"section_id": sectionID})
}

// Completed implements the sequencer Observer.
func (b *Broker) Completed() {
	b.publish(EventCompleted, struct{}{})
}

// Stopped implements the sequencer Observer.
func (b *Broker) Stopped() {
	b.publish(EventStopped, struct{}{})
}

// PublishStatus broadcasts a presentation state snapshot.
func (b *Broker) PublishStatus(state model.PresentationState) {
	b.publish(EventStatus, state)
}

// PublishMetrics broadcasts one tick of live metric samples.
func (b *Broker) PublishMetrics(samples []model.MetricSample) {
	b.publish(EventMetrics, samples)
}

func (b *Broker) publish(eventType string, payload any) {
	event, err := encodeEvent(eventType, payload)
	if err != nil {
		b.logger.Error("broker: marshal event", "event", eventType, "error", err)
		return
	}
	b.broadcast(event)
}

// broadcast sends an event to all subscribers. Slow subscribers that have
// a full buffer are skipped (their event is dropped) to prevent one slow
// client from blocking all others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop this event for them.
		}
	}
}

// encodeEvent marshals payload as the data line of an SSE event.
func encodeEvent(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return formatSSE(eventType, string(data)), nil
}

// statusEvent encodes a state snapshot for a single subscriber.
// PresentationState always marshals.
func statusEvent(state model.PresentationState) []byte {
	event, _ := encodeEvent(EventStatus, state)
	return event
}

// formatSSE formats an event as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	// SSE format: "event: <type>\ndata: <payload>\n\n"
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
