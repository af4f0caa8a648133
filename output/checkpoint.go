package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/frequency-chain/frequency-ops/database/models"
)

// FileCheckpoint keeps resume points in a small JSON file, for runs without a
// database. Every update rewrites the file through a temp file and rename.
type FileCheckpoint struct {
	mu     sync.Mutex
	path   string
	blocks map[string]uint64
}

func NewFileCheckpoint(path string) (*FileCheckpoint, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	c := &FileCheckpoint{path: path, blocks: map[string]uint64{}}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c.blocks); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *FileCheckpoint) GetLastIndexedBlock(_ context.Context, key string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[key], nil
}

func (c *FileCheckpoint) UpdateLastIndexedBlock(_ context.Context, key string, blockNumber uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.blocks[key]
	c.blocks[key] = blockNumber
	if err := c.save(); err != nil {
		if had {
			c.blocks[key] = prev
		} else {
			delete(c.blocks, key)
		}
		return err
	}
	return nil
}

func (c *FileCheckpoint) ListLastIndexedBlocks(_ context.Context) ([]models.LastIndexedBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := make([]models.LastIndexedBlock, 0, len(c.blocks))
	for key, block := range c.blocks {
		blocks = append(blocks, models.LastIndexedBlock{Key: key, BlockNumber: block})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Key < blocks[j].Key })
	return blocks, nil
}

func (c *FileCheckpoint) save() error {
	b, err := json.MarshalIndent(c.blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", c.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}
