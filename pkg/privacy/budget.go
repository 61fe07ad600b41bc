package privacy

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// Budget tracks the differential privacy budget of a single
// participant. Used grows monotonically and never resets.
type Budget struct {
	Epsilon     float64   `json:"epsilon"`
	Delta       float64   `json:"delta"`
	Used        float64   `json:"used"`
	Max         float64   `json:"max"`
	LastUpdated time.Time `json:"last_updated"`
}

// Remaining returns the budget left before the cap is reached.
func (b Budget) Remaining() float64 {
	r := b.Max - b.Used
	if r < 0 {
		return 0
	}

	return r
}

// Exhausted reports whether the participant has spent its full budget.
func (b Budget) Exhausted() bool {
	return b.Used >= b.Max
}

// BudgetManager accounts privacy budget spending per participant. By
// default overruns are logged and allowed; with StrictMode enabled
// Spend refuses once the cap would be exceeded.
type BudgetManager struct {
	mu         sync.RWMutex
	budgets    map[string]*Budget
	defaultEps float64
	delta      float64
	maxBudget  float64
	strict     bool
	logger     *slog.Logger
}

// BudgetConfig holds the accounting defaults applied to participants
// that have no explicit budget registered.
type BudgetConfig struct {
	Epsilon    float64
	Delta      float64
	MaxBudget  float64
	StrictMode bool
}

// NewBudgetManager creates a budget manager with the given defaults.
func NewBudgetManager(cfg BudgetConfig, logger *slog.Logger) *BudgetManager {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1.0
	}
	if cfg.Delta <= 0 {
		cfg.Delta = 1e-5
	}
	if cfg.MaxBudget <= 0 {
		cfg.MaxBudget = 10.0
	}

	return &BudgetManager{
		budgets:    make(map[string]*Budget),
		defaultEps: cfg.Epsilon,
		delta:      cfg.Delta,
		maxBudget:  cfg.MaxBudget,
		strict:     cfg.StrictMode,
		logger:     logger,
	}
}

// Register creates a budget for a participant with an explicit cap,
// replacing any existing one.
func (m *BudgetManager) Register(nodeID string, epsilon, delta, max float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budgets[nodeID] = &Budget{
		Epsilon:     epsilon,
		Delta:       delta,
		Max:         max,
		LastUpdated: time.Now(),
	}
}

// Spend records epsilon spent by a participant. In strict mode an
// overrun returns ErrAuthorizationFailed and nothing is recorded;
// otherwise the overrun is logged and the spend is applied.
func (m *BudgetManager) Spend(nodeID string, epsilon float64) error {
	if epsilon <= 0 {
		return errors.Join(pkgerrors.ErrInvalidMessage, errInvalidEpsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.ensure(nodeID)
	if b.Used+epsilon > b.Max {
		if m.strict {
			return errors.Join(pkgerrors.ErrAuthorizationFailed,
				errors.New("privacy budget exhausted for node "+nodeID))
		}
		if m.logger != nil {
			m.logger.Warn("privacy budget overrun",
				slog.String("node_id", nodeID),
				slog.Float64("used", b.Used),
				slog.Float64("spend", epsilon),
				slog.Float64("max", b.Max))
		}
	}

	b.Used += epsilon
	b.LastUpdated = time.Now()

	return nil
}

// CanApply reports whether the participant can spend epsilon within
// its remaining budget. It never mutates state.
func (m *BudgetManager) CanApply(nodeID string, epsilon float64) bool {
	if epsilon <= 0 {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.budgets[nodeID]
	if !ok {
		return epsilon <= m.maxBudget
	}

	return b.Used+epsilon <= b.Max
}

// BudgetOf returns a snapshot of the participant's budget.
func (m *BudgetManager) BudgetOf(nodeID string) (Budget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.budgets[nodeID]
	if !ok {
		return Budget{}, false
	}

	return *b, true
}

// Snapshot returns the budgets of all known participants.
func (m *BudgetManager) Snapshot() map[string]Budget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Budget, len(m.budgets))
	for id, b := range m.budgets {
		out[id] = *b
	}

	return out
}

func (m *BudgetManager) ensure(nodeID string) *Budget {
	b, ok := m.budgets[nodeID]
	if !ok {
		b = &Budget{
			Epsilon:     m.defaultEps,
			Delta:       m.delta,
			Max:         m.maxBudget,
			LastUpdated: time.Now(),
		}
		m.budgets[nodeID] = b
	}

	return b
}
