package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeSpace returns the bytes available on the volume holding dir. dir does
// not need to exist yet; its nearest existing ancestor is probed.
func FreeSpace(dir string) (uint64, error) {
	probe, err := existingAncestor(dir)
	if err != nil {
		return 0, err
	}
	usage, err := disk.Usage(probe)
	if err != nil {
		return 0, fmt.Errorf("failed to read disk usage for %s: %w", probe, err)
	}
	return usage.Free, nil
}

// CheckFreeSpace returns ErrInsufficientSpace when dir's volume has fewer
// than need bytes free. Other errors mean the probe itself failed.
func CheckFreeSpace(dir string, need uint64) error {
	free, err := FreeSpace(dir)
	if err != nil {
		return err
	}
	if free < need {
		return fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientSpace, need, free)
	}
	return nil
}

func existingAncestor(dir string) (string, error) {
	p, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor for %s", dir)
		}
		p = parent
	}
}
