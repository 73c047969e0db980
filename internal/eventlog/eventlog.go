// Package eventlog provides an ephemeral, thread-safe, in-memory
// event store: appended records grouped by run, replay of persisted
// JSONL logs, and run-status projection from the event stream.
package eventlog

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/flowgrid/internal/events"
)

// Store holds event records grouped by run ID, in append order.
type Store struct {
	mu   sync.Mutex
	runs map[string][]*events.Event
}

func New() *Store {
	return &Store{runs: map[string][]*events.Event{}}
}

// Append records one event under its run.
func (s *Store) Append(e *events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[e.RunID] = append(s.runs[e.RunID], e)
}

// Events returns the recorded events of one run, in append order.
func (s *Store) Events(runID string) []*events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*events.Event, len(s.runs[runID]))
	copy(out, s.runs[runID])
	return out
}

// RunIDs lists the runs with at least one record, sorted.
func (s *Store) RunIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunStatus projects the current status of a run from its latest
// status-bearing event.
func (s *Store) RunStatus(runID string) events.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := events.StatusNotStarted
	for _, e := range s.runs[runID] {
		if next, ok := events.RunStatusFor(e.Type); ok {
			status = next
		}
	}
	return status
}

// ReplayLines decodes a JSONL event log into the store. Records of
// unknown event types degrade per the deserializer's rules rather than
// aborting the replay; a structurally malformed line is an error
// naming its position.
func (s *Store) ReplayLines(src []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		e, err := events.Deserialize(line)
		if err != nil {
			return count, fmt.Errorf("replaying event log line %d: %w", lineNo, err)
		}
		s.Append(e)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading event log: %w", err)
	}
	return count, nil
}
