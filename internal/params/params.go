package params

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Coefficient bounds (exclusive), in hundredths.
const (
	MinCoefficient = 100
	MaxCoefficient = 200
)

// Defaults used when no configuration is supplied.
const (
	DefaultCoefficient = 195
	DefaultMinStake    = 100
	DefaultMaxStake    = 1_000_000_000_000_000_000
)

// Snapshot is a consistent view of all parameters.
type Snapshot struct {
	Coefficient uint64 `json:"coefficient" yaml:"coefficient"`
	MinStake    uint64 `json:"min_stake" yaml:"min_stake"`
	MaxStake    uint64 `json:"max_stake" yaml:"max_stake"`
}

// Validate checks the coefficient band and bound ordering.
func (s Snapshot) Validate() error {
	err := ValidateCoefficient(s.Coefficient)
	if err != nil {
		return err
	}
	return ValidateStakeBounds(s.MinStake, s.MaxStake)
}

// ValidateCoefficient enforces 100 < value < 200.
func ValidateCoefficient(value uint64) error {
	if value <= MinCoefficient || value >= MaxCoefficient {
		return fmt.Errorf("coefficient %d must be greater than %d and less than %d: %w",
			value, MinCoefficient, MaxCoefficient, types.ErrInvalidParameter)
	}
	return nil
}

// ValidateStakeBounds enforces min <= max.
func ValidateStakeBounds(minStake uint64, maxStake uint64) error {
	if minStake > maxStake {
		return fmt.Errorf("min stake %d exceeds max stake %d: %w", minStake, maxStake, types.ErrInvalidParameter)
	}
	return nil
}

// Store owns the mutable engine configuration. All writes go through validated setters.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	logger  *zap.Logger
}

// New creates a parameter store seeded with initial values.
func New(initial Snapshot, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	err := initial.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate initial parameters: %w", err)
	}

	s := &Store{
		current: initial,
		logger:  logger,
	}
	s.publishMetrics(initial)

	return s, nil
}

// Snapshot returns the current parameters.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCoefficient replaces the coefficient. The prior value is kept on error.
func (s *Store) SetCoefficient(value uint64) (snap Snapshot, err error) {
	err = ValidateCoefficient(value)
	if err != nil {
		ParameterRejectionsTotal.WithLabelValues("coefficient").Inc()
		return s.Snapshot(), err
	}

	s.mu.Lock()
	previous := s.current.Coefficient
	s.current.Coefficient = value
	snap = s.current
	s.mu.Unlock()

	s.publishMetrics(snap)
	s.logger.Info("coefficient-updated",
		zap.Uint64("previous", previous),
		zap.Uint64("coefficient", value),
		zap.String("multiplier", types.Multiplier(value)))

	return snap, nil
}

// SetStakeBounds replaces both bounds as one pair. Neither changes on error.
func (s *Store) SetStakeBounds(minStake uint64, maxStake uint64) (snap Snapshot, err error) {
	err = ValidateStakeBounds(minStake, maxStake)
	if err != nil {
		ParameterRejectionsTotal.WithLabelValues("stake_bounds").Inc()
		return s.Snapshot(), err
	}

	s.mu.Lock()
	s.current.MinStake = minStake
	s.current.MaxStake = maxStake
	snap = s.current
	s.mu.Unlock()

	s.publishMetrics(snap)
	s.logger.Info("stake-bounds-updated",
		zap.Uint64("min-stake", minStake),
		zap.Uint64("max-stake", maxStake))

	return snap, nil
}

// CheckStake reports ErrStakeOutOfRange unless min <= stake <= max.
func (s Snapshot) CheckStake(stake uint64) error {
	if stake < s.MinStake || stake > s.MaxStake {
		return fmt.Errorf("stake %d outside [%d, %d]: %w", stake, s.MinStake, s.MaxStake, types.ErrStakeOutOfRange)
	}
	return nil
}

func (s *Store) publishMetrics(snap Snapshot) {
	CoefficientGauge.Set(float64(snap.Coefficient))
	MinStakeGauge.Set(float64(snap.MinStake))
	MaxStakeGauge.Set(float64(snap.MaxStake))
}
