package tracer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codecoder/codecoder/pkg/types"
)

const (
	maxRetainedFiles = 10
	writeBudget      = 200 * time.Millisecond
)

// sink is the line-delimited JSON trace file, append-only for one process
// lifetime. Writes are best-effort: I/O errors are swallowed and
// over-budget writes are counted as dropped, since observability must never
// affect correctness of the traced work.
type sink struct {
	mu      sync.Mutex
	file    *os.File
	dropped atomic.Int64
}

// newSink prunes dir to the 9 most recent trace-*.jsonl files, then opens a
// new one named by startedAtMs so the total never exceeds maxRetainedFiles.
func newSink(dir string, startedAtMs int64) (*sink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if err := pruneOldTraceFiles(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fmt.Sprintf("trace-%d.jsonl", startedAtMs))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &sink{file: f}, nil
}

func pruneOldTraceFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".jsonl" && len(e.Name()) > 6 && e.Name()[:6] == "trace-" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	// Keep room for the file about to be created.
	keep := maxRetainedFiles - 1
	if len(names) <= keep {
		return nil
	}
	for _, name := range names[:len(names)-keep] {
		os.Remove(filepath.Join(dir, name))
	}
	return nil
}

// write appends entry as one JSON line. If the write doesn't complete
// within the budget, write returns and counts the entry as dropped; the
// pending write itself still finishes in the background.
func (s *sink) write(entry types.TraceEntry) {
	if s == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.file.Write(data)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(writeBudget):
		s.dropped.Add(1)
	}
}

// droppedCount returns how many entries were dropped for exceeding the
// write budget.
func (s *sink) droppedCount() int64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

func (s *sink) close() error {
	if s == nil {
		return nil
	}
	return s.file.Close()
}
