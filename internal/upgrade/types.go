package upgrade

import (
	"time"

	"github.com/pilgrims/utilup/internal/update"
)

// Phase is a state of an upgrade run.
type Phase string

const (
	PhaseNotStarted  Phase = "not-started"
	PhaseStarted     Phase = "started"
	PhaseChecking    Phase = "checking-for-updates"
	PhaseDownloading Phase = "downloading"
	PhaseValidating  Phase = "validating"
	PhaseExtracting  Phase = "extracting"
	PhaseInstalling  Phase = "installing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
)

// Terminal reports whether no transition may leave p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// UpgradeProgress is the single progress value reported by an upgrade run.
// Percentage is 0..100 across the whole run and never decreases.
type UpgradeProgress struct {
	RunID            string    `json:"run_id" yaml:"run_id"`
	UtilityName      string    `json:"utility_name" yaml:"utility_name"`
	Phase            Phase     `json:"phase" yaml:"phase"`
	Percentage       float64   `json:"percentage" yaml:"percentage"`
	CurrentOperation string    `json:"current_operation" yaml:"current_operation"`
	ErrorMessage     string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	StartTime        time.Time `json:"start_time" yaml:"start_time"`
	EndTime          time.Time `json:"end_time,omitzero" yaml:"end_time,omitempty"`
}

// ProgressFunc receives upgrade progress. Calls for one run are sequential.
type ProgressFunc func(UpgradeProgress)

// UpgradeResult is the terminal outcome of an upgrade run.
type UpgradeResult struct {
	RunID           string    `json:"run_id" yaml:"run_id"`
	Success         bool      `json:"success" yaml:"success"`
	State           Phase     `json:"state" yaml:"state"`
	Message         string    `json:"message" yaml:"message"`
	ErrorMessage    string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	PreviousVersion string    `json:"previous_version,omitempty" yaml:"previous_version,omitempty"`
	NewVersion      string    `json:"new_version,omitempty" yaml:"new_version,omitempty"`
	InstalledPath   string    `json:"installed_path,omitempty" yaml:"installed_path,omitempty"`
	// BackupID identifies the snapshot of the executables this run replaced.
	BackupID string `json:"backup_id,omitempty" yaml:"backup_id,omitempty"`
}

// ToolInfo is a point-in-time report about one tool.
type ToolInfo struct {
	Name            string                  `json:"name" yaml:"name"`
	CurrentVersion  string                  `json:"current_version,omitempty" yaml:"current_version,omitempty"`
	LatestVersion   string                  `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	ExecutablePath  string                  `json:"executable_path,omitempty" yaml:"executable_path,omitempty"`
	IsAvailable     bool                    `json:"is_available" yaml:"is_available"`
	UpdateStatus    update.ComparisonResult `json:"update_status" yaml:"update_status"`
	StatusMessage   string                  `json:"status_message" yaml:"status_message"`
	SuggestedAction string                  `json:"suggested_action" yaml:"suggested_action"`
	DownloadURL     string                  `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	DownloadSize    int64                   `json:"download_size,omitempty" yaml:"download_size,omitempty"`
	ErrorMessage    string                  `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// UpdateCheck is the answer to "is there a newer release?".
type UpdateCheck struct {
	Name            string                  `json:"name" yaml:"name"`
	UpdateAvailable bool                    `json:"update_available" yaml:"update_available"`
	Status          update.ComparisonResult `json:"status" yaml:"status"`
	CurrentVersion  string                  `json:"current_version,omitempty" yaml:"current_version,omitempty"`
	LatestVersion   string                  `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	ErrorMessage    string                  `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}
