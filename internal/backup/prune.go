package backup

import (
	"fmt"
)

// DefaultKeepCount is the number of backups retained per tool.
const DefaultKeepCount = 3

// PruneResult lists what Prune removed.
type PruneResult struct {
	Deleted []BackupInfo `json:"deleted" yaml:"deleted"`
	Kept    int          `json:"kept" yaml:"kept"`
}

// Prune removes tool's old backups, keeping the newest keep.
func (m *Manager) Prune(tool string, keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List(tool)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	if len(backups) <= keep {
		result.Kept = len(backups)
		return result, nil
	}

	result.Kept = keep
	for _, b := range backups[keep:] {
		if err := m.Delete(tool, b.ID); err != nil {
			return nil, fmt.Errorf("failed to delete backup %s: %w", b.ID, err)
		}
		result.Deleted = append(result.Deleted, b)
	}
	return result, nil
}
