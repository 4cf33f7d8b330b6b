package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is one persisted telemetry record.
type Event struct {
	Timestamp  time.Time          `json:"ts"`
	Name       string             `json:"event"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Attributes map[string]any     `json:"attributes,omitempty"`
}

// Journal persists events as newline-delimited JSON for offline aggregation.
// Telemetry is not latency-critical, so concurrent writers serialize the full
// append under one coarse lock.
type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal creates a journal writing to path, ensuring its directory exists.
func NewJournal(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal dir: %w", err)
		}
	}
	return &Journal{path: path}, nil
}

// Append serializes the event and appends it to the journal file.
func (j *Journal) Append(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode telemetry event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "telemetry: close %s: %v\n", j.path, cerr)
		}
	}()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// Stream walks every persisted event in order, invoking fn per event.
func (j *Journal) Stream(ctx context.Context, fn func(Event) error) error {
	if fn == nil {
		return fmt.Errorf("callback required")
	}

	file, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "telemetry: close %s: %v\n", j.path, cerr)
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return fmt.Errorf("decode telemetry event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal file: %w", err)
	}
	return nil
}

// ReadAll materializes every persisted event.
func (j *Journal) ReadAll(ctx context.Context) ([]Event, error) {
	events := []Event{}
	if err := j.Stream(ctx, func(event Event) error {
		events = append(events, event)
		return nil
	}); err != nil {
		return nil, err
	}
	return events, nil
}
