package upgrade

// Overall progress windows for each phase of a run.
const (
	pctStarted     = 0
	pctChecking    = 5
	pctDownload    = 10
	weightDownload = 70
	pctValidating  = 80
	pctExtract     = 85
	weightExtract  = 10
	pctInstalling  = 95
	pctCompleted   = 100
)

// Remap projects a phase-local percentage (0..100) onto the window
// [phaseStart, phaseStart+phaseWeight] of the overall run. Out-of-range
// input is clamped.
func Remap(value, phaseStart, phaseWeight float64) float64 {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return phaseStart + value*phaseWeight/100
}
