// Package file provides file-based persistence for flows, executions and
// leads, intended for tests and local development.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system. Entities are stored as one JSON file per record. A single mutex
// serializes all operations, which also makes the execution-create
// compare-and-swap atomic.
type Persistence struct {
	root          string
	mu            sync.RWMutex
	flowRepo      *FlowRepository
	executionRepo *ExecutionRepository
	leadRepo      *LeadRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.flowRepo = &FlowRepository{persistence: p}
	p.executionRepo = &ExecutionRepository{persistence: p}
	p.leadRepo = &LeadRepository{persistence: p}

	return p
}

func (p *Persistence) Flows() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) Leads() persistence.LeadRepository {
	return p.leadRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) dir(kind string) string {
	return filepath.Join(p.root, kind)
}

func (p *Persistence) write(kind, id string, entity any) error {
	dir := p.dir(kind)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

func (p *Persistence) read(kind, id string, entity any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(p.dir(kind), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return true, nil
}

// readAll decodes every record of a kind through the scan callback, which
// receives the raw JSON of one record at a time.
func (p *Persistence) readAll(kind string, scan func(data []byte) error) error {
	entries, err := os.ReadDir(p.dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read %s directory: %w", kind, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.dir(kind), entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s %s: %w", kind, entry.Name(), err)
		}

		if err := scan(data); err != nil {
			return err
		}
	}

	return nil
}
