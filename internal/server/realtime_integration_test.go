package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type streamEvent struct {
	name string
	data streamEventPayload
}

func readStreamEvent(t *testing.T, reader *bufio.Reader) streamEvent {
	t.Helper()
	var event streamEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event.name != "" {
				return event
			}
		case strings.HasPrefix(line, "event:"):
			event.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(payload), &event.data); err != nil {
				t.Fatalf("failed to decode event data %q: %v", payload, err)
			}
		}
	}
}

func TestStreamEmitsSuggestionChanges(t *testing.T) {
	server := newTestServer(t, "doc-1", "doc-2")
	server.openDocument(t)
	server.openDocument(t)

	httpServer := httptest.NewServer(server.handler)
	t.Cleanup(httpServer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/documents/doc-1/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build stream request: %v", err)
	}
	request.AddCookie(server.cookie)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status %d", response.StatusCode)
	}
	if !strings.HasPrefix(response.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", response.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(response.Body)
	if ready := readStreamEvent(t, reader); ready.name != realtimeEventReady || ready.data.DocumentID != "doc-1" {
		t.Fatalf("expected ready event, got %+v", ready)
	}

	// Changes to another document of the same owner are filtered out.
	if recorder := server.do(t, http.MethodPost, "/documents/doc-2/suggestions/s1/accept", ""); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if recorder := server.do(t, http.MethodPost, "/documents/doc-1/suggestions/s2/reject", ""); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	event := readStreamEvent(t, reader)
	if event.name != "suggestions_changed" || event.data.DocumentID != "doc-1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if len(event.data.SuggestionIDs) != 1 || event.data.SuggestionIDs[0] != "s2" {
		t.Fatalf("unexpected suggestion ids %v", event.data.SuggestionIDs)
	}

	if recorder := server.do(t, http.MethodDelete, "/documents/doc-1", ""); recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if event := readStreamEvent(t, reader); event.name != "document_discarded" {
		t.Fatalf("expected discard event, got %+v", event)
	}
}

func TestStreamRejectsUnknownDocument(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodGet, "/documents/missing/stream", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", recorder.Code)
	}
}
