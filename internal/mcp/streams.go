// ABOUTME: In-memory fan-out of event log appends to live SSE subscribers.
// ABOUTME: Tracks per-session request streams so teardown can clear them.

package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/glab-gateway/internal/eventlog"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// StreamEvent is one recorded event delivered to a live subscriber.
type StreamEvent struct {
	ID      string
	Message json.RawMessage
}

// Streams bridges the event log and live SSE connections. Every publish
// is recorded in the log first, then fanned out to subscribers of the
// stream. Request streams are tied to their session so DropSession can
// clear everything a session ever produced.
type Streams struct {
	mu       sync.RWMutex
	log      *eventlog.Log
	subs     map[string]map[string]chan *StreamEvent // streamID -> subID -> ch
	requests map[string]map[string]struct{}          // sessionID -> request stream IDs
	logger   *slog.Logger
}

// NewStreams creates the bridge over the given event log.
func NewStreams(log *eventlog.Log, logger *slog.Logger) *Streams {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streams{
		log:      log,
		subs:     make(map[string]map[string]chan *StreamEvent),
		requests: make(map[string]map[string]struct{}),
		logger:   logger.With("component", "streams"),
	}
}

// OpenRequestStream allocates a stream ID for one request's response
// events and ties it to the session for later teardown.
func (s *Streams) OpenRequestStream(sessionID string) string {
	streamID := uuid.New().String()

	s.mu.Lock()
	if _, ok := s.requests[sessionID]; !ok {
		s.requests[sessionID] = make(map[string]struct{})
	}
	s.requests[sessionID][streamID] = struct{}{}
	s.mu.Unlock()

	return streamID
}

// Publish records the message on the stream and fans it out to live
// subscribers. Returns the recorded event ID.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (s *Streams) Publish(streamID string, message json.RawMessage) string {
	eventID := s.log.Append(streamID, message)
	event := &StreamEvent{ID: eventID, Message: message}

	// The sends happen under the read lock so a racing Unsubscribe,
	// DropSession, or Close cannot close a channel mid-send. They are
	// non-blocking, so the hold time is bounded.
	s.mu.RLock()
	for _, ch := range s.subs[streamID] {
		select {
		case ch <- event:
		default:
			s.logger.Debug("dropped event for slow subscriber",
				"stream_id", streamID,
				"event_id", eventID)
		}
	}
	s.mu.RUnlock()

	return eventID
}

// Subscribe registers a live subscriber on the stream. The returned
// channel is closed on Unsubscribe, and the subscription is cleaned up
// automatically when ctx is cancelled.
func (s *Streams) Subscribe(ctx context.Context, streamID string) (<-chan *StreamEvent, string) {
	subID := uuid.New().String()
	ch := make(chan *StreamEvent, subscriberBufferSize)

	s.mu.Lock()
	if _, ok := s.subs[streamID]; !ok {
		s.subs[streamID] = make(map[string]chan *StreamEvent)
	}
	s.subs[streamID][subID] = ch
	s.mu.Unlock()

	s.logger.Debug("subscriber added",
		"stream_id", streamID,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		s.Unsubscribe(streamID, subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Streams) Unsubscribe(streamID, subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.subs[streamID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(s.subs, streamID)
	}

	s.logger.Debug("subscriber removed",
		"stream_id", streamID,
		"sub_id", subID)
}

// Replay re-delivers recorded events after the given cursor. See
// eventlog.Log.ReplayAfter for the cursor semantics.
func (s *Streams) Replay(ctx context.Context, lastEventID string, send eventlog.SendFunc) (string, error) {
	return s.log.ReplayAfter(ctx, lastEventID, send)
}

// DropSession clears the session's standalone stream and every request
// stream it opened, both from the log and from live subscribers.
func (s *Streams) DropSession(sessionID string) {
	s.mu.Lock()
	streams := []string{sessionID}
	for streamID := range s.requests[sessionID] {
		streams = append(streams, streamID)
	}
	delete(s.requests, sessionID)

	for _, streamID := range streams {
		for subID, ch := range s.subs[streamID] {
			close(ch)
			delete(s.subs[streamID], subID)
		}
		delete(s.subs, streamID)
	}
	s.mu.Unlock()

	for _, streamID := range streams {
		s.log.ClearStream(streamID)
	}

	s.logger.Debug("session streams dropped",
		"session_id", sessionID,
		"streams", len(streams))
}

// Close shuts down the bridge and closes all subscriber channels.
func (s *Streams) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for streamID, subs := range s.subs {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(s.subs, streamID)
	}

	s.logger.Debug("streams closed")
}
