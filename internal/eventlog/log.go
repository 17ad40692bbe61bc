// ABOUTME: Append-only in-memory event log with per-stream ordered replay.
// ABOUTME: Records carry an explicit stream/sequence key for resumable delivery.

package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable log record. Sequence is the per-stream append
// counter and is authoritative for ordering; the ID embeds
// (stream, timestamp, random suffix) so IDs within a stream also sort
// lexicographically in append order to clock precision.
type Event struct {
	ID       string
	StreamID string
	Sequence uint64
	Message  json.RawMessage
}

// SendFunc delivers one event during replay. Replay is sequential: a
// call completes before the next event is produced.
type SendFunc func(ctx context.Context, eventID string, message json.RawMessage) error

// Log stores events for all streams in one flat collection keyed by
// event ID, with a per-stream ordered index for replay. Events are
// never mutated after append; they only leave via ClearStream. Growth
// is unbounded by design — this is the in-memory form.
type Log struct {
	mu      sync.RWMutex
	events  map[string]*Event
	streams map[string][]*Event
	seqs    map[string]uint64
	logger  *slog.Logger
}

// NewLog creates an empty event log.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		events:  make(map[string]*Event),
		streams: make(map[string][]*Event),
		seqs:    make(map[string]uint64),
		logger:  logger.With("component", "eventlog"),
	}
}

// Append stores a message on the stream and returns the new event ID.
func (l *Log) Append(streamID string, message json.RawMessage) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seqs[streamID]++
	evt := &Event{
		ID:       fmt.Sprintf("%s_%d_%s", streamID, time.Now().UnixMilli(), uuid.NewString()),
		StreamID: streamID,
		Sequence: l.seqs[streamID],
		Message:  message,
	}
	l.events[evt.ID] = evt
	l.streams[streamID] = append(l.streams[streamID], evt)
	return evt.ID
}

// ReplayAfter re-delivers every event of the owning stream appended
// strictly after lastEventID, in order, one send at a time. An empty
// or unknown lastEventID means nothing to resume: it returns ("", nil)
// without calling send. On success the stream ID is returned even when
// zero events followed. A send failure propagates unchanged; events
// already sent stay sent and replay does not resume on its own.
func (l *Log) ReplayAfter(ctx context.Context, lastEventID string, send SendFunc) (string, error) {
	if lastEventID == "" {
		return "", nil
	}

	l.mu.RLock()
	last, ok := l.events[lastEventID]
	if !ok {
		l.mu.RUnlock()
		return "", nil
	}
	stream := l.streams[last.StreamID]
	idx := sort.Search(len(stream), func(i int) bool {
		return stream[i].Sequence > last.Sequence
	})
	pending := stream[idx:]
	l.mu.RUnlock()

	for _, evt := range pending {
		if err := send(ctx, evt.ID, evt.Message); err != nil {
			return "", err
		}
	}

	l.logger.Debug("replayed events", "stream_id", last.StreamID, "count", len(pending))
	return last.StreamID, nil
}

// ClearStream drops every record of a permanently torn down stream.
func (l *Log) ClearStream(streamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.streams[streamID]
	for _, evt := range events {
		delete(l.events, evt.ID)
	}
	delete(l.streams, streamID)
	delete(l.seqs, streamID)

	if len(events) > 0 {
		l.logger.Debug("stream cleared", "stream_id", streamID, "removed", len(events))
	}
}

// EventCount returns the total number of stored events.
func (l *Log) EventCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// StreamEventCount returns the number of events stored for a stream.
func (l *Log) StreamEventCount(streamID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.streams[streamID])
}
