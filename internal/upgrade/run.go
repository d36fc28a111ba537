package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pilgrims/utilup/internal/download"
)

// transitions lists the forward moves of the state machine. Failed and
// Cancelled are reachable from every non-terminal state.
var transitions = map[Phase][]Phase{
	PhaseNotStarted:  {PhaseChecking},
	PhaseChecking:    {PhaseDownloading, PhaseCompleted},
	PhaseDownloading: {PhaseValidating},
	PhaseValidating:  {PhaseExtracting, PhaseInstalling},
	PhaseExtracting:  {PhaseInstalling},
	PhaseInstalling:  {PhaseCompleted},
}

// run is the state of one upgrade attempt.
type run struct {
	id      string
	label   string
	name    string
	state   Phase
	started time.Time
	pct     float64
	op      string
	sink    ProgressFunc
	scratch string
	// backupID names the snapshot of the replaced executables, if any.
	backupID string
	result   UpgradeResult
	logger   *slog.Logger
}

func (o *Orchestrator) newRun(sink ProgressFunc) *run {
	if sink == nil {
		sink = func(UpgradeProgress) {}
	}
	id := newRunID()
	return &run{
		id:      id,
		label:   o.tool.Label(),
		name:    o.tool.Name,
		state:   PhaseNotStarted,
		started: time.Now(),
		sink:    sink,
		logger:  o.logger.With("run_id", id),
	}
}

func (r *run) canEnter(next Phase) bool {
	if r.state.Terminal() {
		return false
	}
	if next == PhaseFailed || next == PhaseCancelled {
		return true
	}
	return slices.Contains(transitions[r.state], next)
}

// enter moves to the next phase unless ctx is already done.
func (r *run) enter(ctx context.Context, next Phase, pct float64, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.canEnter(next) {
		panic(fmt.Sprintf("upgrade: illegal transition %s -> %s", r.state, next))
	}
	r.state = next
	r.logger.Debug("phase", "phase", next)
	r.emit(pct, op)
	return nil
}

// emit reports progress within the current phase. Percentages never go
// backwards.
func (r *run) emit(pct float64, op string) {
	if r.state.Terminal() {
		return
	}
	if pct < r.pct {
		pct = r.pct
	}
	r.pct = pct
	if op != "" {
		r.op = op
	}

	phase := r.state
	if phase == PhaseNotStarted {
		phase = PhaseStarted
	}
	r.sink(UpgradeProgress{
		RunID:            r.id,
		UtilityName:      r.name,
		Phase:            phase,
		Percentage:       r.pct,
		CurrentOperation: r.op,
		StartTime:        r.started,
	})
}

func (r *run) downloadProgress(label string) download.ProgressFunc {
	return func(p download.Progress) {
		op := fmt.Sprintf("Downloading %s: %s", label, humanize.Bytes(uint64(p.BytesDownloaded)))
		pct, known := p.Percentage()
		if known {
			op = fmt.Sprintf("Downloading %s: %s of %s", label,
				humanize.Bytes(uint64(p.BytesDownloaded)), humanize.Bytes(uint64(p.TotalBytes)))
		}
		if p.BytesPerSecond > 0 {
			op += fmt.Sprintf(" (%s/s)", humanize.Bytes(uint64(p.BytesPerSecond)))
		}
		if known {
			r.emit(Remap(pct, pctDownload, weightDownload), op)
		} else {
			r.emit(r.pct, op)
		}
	}
}

func (r *run) complete(message, previous, next, path string) UpgradeResult {
	return r.finish(PhaseCompleted, UpgradeResult{
		Message:         message,
		PreviousVersion: previous,
		NewVersion:      next,
		InstalledPath:   path,
	})
}

// fail ends the run as Failed, or as Cancelled when err is a context error.
func (r *run) fail(message string, err error) UpgradeResult {
	if isCancellation(err) {
		return r.cancel(err)
	}
	kind := KindOf(err)
	r.logger.Error(message, "kind", kind, "error", err)
	return r.finish(PhaseFailed, UpgradeResult{
		Message:      message,
		ErrorMessage: err.Error(),
		ErrorKind:    kind,
	})
}

func (r *run) cancel(err error) UpgradeResult {
	detail := "operation cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "operation timed out"
	}
	r.logger.Warn("upgrade cancelled", "phase", r.state, "error", err)
	return r.finish(PhaseCancelled, UpgradeResult{
		Message:      fmt.Sprintf("%s upgrade cancelled", r.label),
		ErrorMessage: detail,
		ErrorKind:    KindCancelled,
	})
}

// finish cleans up, enters a terminal state and emits the last progress
// value. Calling it again returns the first result.
func (r *run) finish(state Phase, res UpgradeResult) UpgradeResult {
	if r.state.Terminal() {
		return r.result
	}
	r.cleanup()

	res.RunID = r.id
	res.BackupID = r.backupID
	res.State = state
	res.Success = state == PhaseCompleted
	r.state = state
	r.result = res

	if state == PhaseCompleted {
		r.pct = pctCompleted
		r.logger.Info(res.Message, "previous", res.PreviousVersion, "new", res.NewVersion)
	}
	r.sink(UpgradeProgress{
		RunID:            r.id,
		UtilityName:      r.name,
		Phase:            state,
		Percentage:       r.pct,
		CurrentOperation: res.Message,
		ErrorMessage:     res.ErrorMessage,
		StartTime:        r.started,
		EndTime:          time.Now(),
	})
	return res
}

// cleanup removes the scratch directory holding the download and the
// extracted tree.
func (r *run) cleanup() {
	if r.scratch == "" {
		return
	}
	if err := os.RemoveAll(r.scratch); err != nil {
		r.logger.Warn("failed to clean up", "path", r.scratch, "error", err)
	}
}
