// ABOUTME: SSE channel for GET /mcp: Accept negotiation, replay, live follow.
// ABOUTME: Framing helpers shared with the streamed POST response path.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
	responseMediaTypes    = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

// keepAliveInterval is how often comment pings keep an idle SSE
// connection from being culled by intermediaries.
const keepAliveInterval = 30 * time.Second

// prefersEventStream reports whether the client's Accept header prefers
// an SSE response over plain JSON. Absent or JSON-leaning Accept takes
// the plain path.
func prefersEventStream(r *http.Request) bool {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
	if err != nil {
		return false
	}
	return accepted.Type == "text" && accepted.Subtype == "event-stream"
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEEvent writes one id+data frame and flushes it. Payloads are
// always single-line JSON, so no data splitting is needed.
func writeSSEEvent(w io.Writer, f http.Flusher, eventID string, payload []byte) error {
	if eventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", eventID); err != nil {
			return fmt.Errorf("write SSE event id: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	f.Flush()
	return nil
}

// handleGet opens the session's SSE channel. With a Last-Event-ID
// cursor, missed events are replayed first; the connection then keeps
// following only if the cursor belonged to the session's standalone
// stream (request streams are finished once replayed).
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		http.Error(w, "Not Acceptable: text/event-stream required", http.StatusNotAcceptable)
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Internal Server Error: streaming unsupported", http.StatusInternalServerError)
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	f.Flush()

	s.logger.Debug("SSE stream opened", "session_id", sess.ID)

	// Subscribe before taking the replay snapshot so an event appended
	// between the two is buffered on the subscription instead of falling
	// through both delivery paths. Replayed duplicates are skipped on
	// the live side.
	events, subID := s.streams.Subscribe(r.Context(), sess.ID)
	defer s.streams.Unsubscribe(sess.ID, subID)

	var replayed map[string]struct{}
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		replayed = make(map[string]struct{})
		streamID, err := s.streams.Replay(r.Context(), lastEventID, func(ctx context.Context, eventID string, message json.RawMessage) error {
			replayed[eventID] = struct{}{}
			return writeSSEEvent(w, f, eventID, message)
		})
		if err != nil {
			s.logger.Debug("SSE replay aborted",
				"session_id", sess.ID,
				"error", err,
			)
			return
		}
		if streamID != sess.ID {
			// A finished request stream, or an unknown cursor. Nothing
			// further will ever arrive on it.
			return
		}
	}

	s.deliver(r.Context(), w, f, sess.ID, events, replayed)
}

// deliver writes live events from the subscription until the client
// goes away or the session is dropped. Events in skip were already
// written by the replay pass and are dropped once each.
func (s *Server) deliver(ctx context.Context, w http.ResponseWriter, f http.Flusher, sessionID string, events <-chan *StreamEvent, skip map[string]struct{}) {
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, dup := skip[event.ID]; dup {
				delete(skip, event.ID)
				continue
			}
			if err := writeSSEEvent(w, f, event.ID, event.Message); err != nil {
				s.logger.Debug("SSE write failed",
					"session_id", sessionID,
					"error", err,
				)
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			f.Flush()
		}
	}
}
