package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"yareviews/pkg/models"
)

const resultExt = ".json"

// Manager handles result files and duplicate detection
type Manager struct {
	outputDir string
	pretty    bool
	saved     map[int64]bool
	mu        sync.RWMutex
}

// NewManager creates a storage manager rooted at outputDir
func NewManager(outputDir string, pretty bool) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		pretty:    pretty,
		saved:     make(map[int64]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles indexes the results already in the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != resultExt {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, resultExt), 10, 64)
		if err != nil {
			continue
		}
		m.saved[id] = true
	}

	return nil
}

// Path returns the file a result for orgID is written to
func (m *Manager) Path(orgID int64) string {
	return filepath.Join(m.outputDir, strconv.FormatInt(orgID, 10)+resultExt)
}

// IsSaved checks if a result for orgID is already on disk
func (m *Manager) IsSaved(orgID int64) bool {
	m.mu.RLock()
	known := m.saved[orgID]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.Path(orgID)); err != nil {
		return false
	}
	m.mu.Lock()
	m.saved[orgID] = true
	m.mu.Unlock()
	return true
}

// SaveResult writes result for orgID atomically, replacing any earlier one
func (m *Manager) SaveResult(orgID int64, result models.Result) error {
	filename := m.Path(orgID)

	tempFile, err := os.CreateTemp(m.outputDir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempName := tempFile.Name()

	err = WriteResult(tempFile, result, m.pretty)
	closeErr := tempFile.Close()

	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempName, filename); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[orgID] = true
	m.mu.Unlock()

	return nil
}

// LoadResult reads a previously saved result
func (m *Manager) LoadResult(orgID int64) (models.Result, error) {
	var result models.Result
	data, err := os.ReadFile(m.Path(orgID))
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to parse %s: %w", m.Path(orgID), err)
	}
	return result, nil
}

// GetSavedCount returns the number of results on disk
func (m *Manager) GetSavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// WriteResult encodes result as a single JSON document followed by a newline
func WriteResult(w io.Writer, result models.Result, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
