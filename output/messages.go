// Package output holds the local file sinks: the message dump, the eligible
// accounts list and the file backed checkpoint.
package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/frequency-chain/frequency-ops/types"
)

// MessageFile appends one JSON document per message. Existing content is
// never truncated, so consecutive runs accumulate.
type MessageFile struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

func NewMessageFile(path string) (*MessageFile, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file: %w", err)
	}

	return &MessageFile{f: f, w: bufio.NewWriter(f), path: path}, nil
}

func (m *MessageFile) Path() string {
	return m.path
}

// WriteMessages appends a page and flushes it before returning.
func (m *MessageFile) WriteMessages(_ context.Context, _ types.SchemaID, content []types.MessageResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf bytes.Buffer
	for _, msg := range content {
		buf.Reset()
		if len(msg.Raw) > 0 {
			// one message per line
			if err := json.Compact(&buf, msg.Raw); err != nil {
				return fmt.Errorf("failed to compact message %d/%d: %w", msg.BlockNumber, msg.Index, err)
			}
		} else {
			line, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to encode message %d/%d: %w", msg.BlockNumber, msg.Index, err)
			}
			buf.Write(line)
		}
		if _, err := m.w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		if err := m.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}

	if err := m.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush message file: %w", err)
	}
	return nil
}

func (m *MessageFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.w.Flush(); err != nil {
		m.f.Close()
		return fmt.Errorf("failed to flush message file: %w", err)
	}
	return m.f.Close()
}
