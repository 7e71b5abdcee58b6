package session

import (
	"sentinelscan/internal/logger"
	"sentinelscan/pkg/models"
)

// Machine enforces the forward-only phase progression of a scan session.
// Backward transitions and transitions out of a terminal phase are rejected
// and logged as anomalies; the phase is left unchanged.
type Machine struct {
	phase models.Phase
}

// NewMachine returns a machine in the idle phase.
func NewMachine() Machine {
	return Machine{phase: models.PhaseIdle}
}

// Phase returns the current phase.
func (m *Machine) Phase() models.Phase {
	return m.phase
}

// Advance moves to target if the transition is strictly forward. A repeat of
// the current phase is a silent no-op; anything backward is an anomaly.
func (m *Machine) Advance(target models.Phase) bool {
	if target == m.phase {
		return false
	}
	if m.phase.Terminal() {
		logger.Warnf("Rejecting phase transition %s -> %s: session is terminal", m.phase, target)
		return false
	}
	if target == models.PhaseError {
		m.phase = models.PhaseError
		return true
	}
	if target.Rank() < 0 || target.Rank() < m.phase.Rank() {
		logger.Warnf("Rejecting backward phase transition %s -> %s", m.phase, target)
		return false
	}
	m.phase = target
	return true
}

// Fail forces the error phase unless the session is already terminal.
func (m *Machine) Fail() {
	if !m.phase.Terminal() {
		m.phase = models.PhaseError
	}
}

// Reset returns the machine to idle for a genuinely new session.
func (m *Machine) Reset() {
	m.phase = models.PhaseIdle
}
