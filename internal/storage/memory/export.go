// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OCAP2/movement/pkg/core"
	"github.com/klauspost/compress/gzip"
)

// MovementExport is the root JSON structure
type MovementExport struct {
	Session      string             `json:"session"`
	StartTime    time.Time          `json:"startTime"`
	Tokens       []TokenJSON        `json:"tokens"`
	RegionEvents []core.RegionEvent `json:"regionEvents"`
}

// TokenJSON holds everything recorded for one token
type TokenJSON struct {
	ID      string                  `json:"id"`
	Commits []core.MovementCommit   `json:"commits"`
	History []core.MeasuredWaypoint `json:"history"`
}

// Export writes the recorded data immediately, independent of Close.
func (b *Backend) Export() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.exportJSON(); err != nil {
		return "", err
	}
	return b.lastExportPath, nil
}

// GetExportedFilePath returns the path of the last export, or "" if none.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastExportPath
}

// exportJSON writes the movement data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	session := strings.ReplaceAll(b.session, " ", "_")
	session = strings.ReplaceAll(session, ":", "_")
	timestamp := b.startTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", session, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", session, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() MovementExport {
	export := MovementExport{
		Session:      b.session,
		StartTime:    b.startTime,
		Tokens:       make([]TokenJSON, 0, len(b.tokens)),
		RegionEvents: make([]core.RegionEvent, 0, len(b.regionEvents)),
	}

	for _, r := range b.tokens {
		token := TokenJSON{
			ID:      r.TokenID,
			Commits: make([]core.MovementCommit, 0, len(r.Commits)),
			History: core.FiniteCosts(r.History),
		}
		for _, c := range r.Commits {
			c.Waypoints = core.FiniteCosts(c.Waypoints)
			token.Commits = append(token.Commits, c)
		}
		export.Tokens = append(export.Tokens, token)
	}
	sort.Slice(export.Tokens, func(i, j int) bool {
		return export.Tokens[i].ID < export.Tokens[j].ID
	})

	export.RegionEvents = append(export.RegionEvents, b.regionEvents...)
	return export
}

func (b *Backend) writeJSON(path string, data MovementExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data MovementExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
