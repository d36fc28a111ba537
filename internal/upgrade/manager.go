package upgrade

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownTool is returned for names with no registered orchestrator.
var ErrUnknownTool = errors.New("unknown tool")

// Manager exposes every managed tool through one API by delegating to the
// tool's Orchestrator. Calls for different tools may run concurrently.
type Manager struct {
	orchestrators map[string]*Orchestrator
}

// NewManager registers orchestrators by tool name.
func NewManager(orchestrators ...*Orchestrator) *Manager {
	m := &Manager{orchestrators: make(map[string]*Orchestrator, len(orchestrators))}
	for _, o := range orchestrators {
		m.orchestrators[o.Tool().Name] = o
	}
	return m
}

// Tools returns the registered tool names, sorted.
func (m *Manager) Tools() []string {
	names := make([]string, 0, len(m.orchestrators))
	for name := range m.orchestrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) get(name string) (*Orchestrator, error) {
	o, ok := m.orchestrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return o, nil
}

// Info reports on one tool.
func (m *Manager) Info(ctx context.Context, name string) (ToolInfo, error) {
	o, err := m.get(name)
	if err != nil {
		return ToolInfo{}, err
	}
	return o.Info(ctx), nil
}

// CheckForUpdate asks whether a newer release of name exists.
func (m *Manager) CheckForUpdate(ctx context.Context, name string) (UpdateCheck, error) {
	o, err := m.get(name)
	if err != nil {
		return UpdateCheck{}, err
	}
	return o.CheckForUpdate(ctx), nil
}

// Upgrade upgrades name. The error is only set for unknown tools; every
// other outcome is in the result.
func (m *Manager) Upgrade(ctx context.Context, name string, opts UpgradeOptions, progress ProgressFunc) (UpgradeResult, error) {
	o, err := m.get(name)
	if err != nil {
		return UpgradeResult{}, err
	}
	return o.UpgradeWith(ctx, opts, progress), nil
}

// InfoAll reports on every tool concurrently, in Tools order.
func (m *Manager) InfoAll(ctx context.Context) []ToolInfo {
	names := m.Tools()
	out := make([]ToolInfo, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			out[i] = m.orchestrators[name].Info(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// CheckAll checks every tool concurrently, in Tools order.
func (m *Manager) CheckAll(ctx context.Context) []UpdateCheck {
	names := m.Tools()
	out := make([]UpdateCheck, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			out[i] = m.orchestrators[name].CheckForUpdate(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
