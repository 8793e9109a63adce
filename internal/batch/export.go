package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/phrazzld/batchq/internal/domain"
)

// exportDocument is the on-disk layout of an export file.
type exportDocument struct {
	Completed  []*domain.Task `json:"completed"`
	Failed     []*domain.Task `json:"failed"`
	Statistics Stats          `json:"statistics"`
	ExportedAt time.Time      `json:"exported_at"`
}

// ExportResults writes the completed and failed tasks plus a status
// snapshot to the given path for offline analysis. Task state is
// copied, never mutated.
func (p *Processor) ExportResults(path string) error {
	p.mu.Lock()
	doc := exportDocument{
		Completed:  cloneTasks(p.completed),
		Failed:     cloneTasks(p.failed),
		ExportedAt: time.Now().UTC(),
	}
	p.mu.Unlock()

	doc.Statistics = p.QueueStatus()

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	p.logger.Info("results exported",
		"path", path,
		"completed", len(doc.Completed),
		"failed", len(doc.Failed))

	return nil
}
