package reinforcement

import (
	"context"
	"time"

	. "gridlearn/grid_world"
)

// Hyper-parameter keys recognized by TrainingConfig.
const (
	AlphaKey        = "alpha"
	GammaKey        = "gamma"
	EpsilonKey      = "epsilon"
	EpsilonDecayKey = "epsilonDecay"
	EpsilonMinKey   = "epsilonMin"
)

// TrainingConfig encodes the learning parameters outside of code. HyperParams is a plain
// key/val list so that new knobs need no schema change.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperParams"`
	// TrainingDeadline bounds headless training, e.g. {duration: 10m}.
	TrainingDeadline map[string]string `yaml:"trainingDeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// Params returns the table constants, falling back to the variant's defaults.
func (cfg *TrainingConfig) Params(variant Variant) Params {
	def := DefaultParams(variant)
	return Params{
		Alpha:   cfg.GetHyperParamOrDefault(AlphaKey, def.Alpha),
		Gamma:   cfg.GetHyperParamOrDefault(GammaKey, def.Gamma),
		Epsilon: cfg.GetHyperParamOrDefault(EpsilonKey, def.Epsilon),
	}
}

// Schedule is the per-episode exploration annealing.
type Schedule struct {
	Decay   float64
	Minimum float64
}

// DefaultSchedule returns the annealing defaults of a variant. The maze starts greedy,
// so its schedule is the identity.
func DefaultSchedule(variant Variant) Schedule {
	if variant == Arena {
		return Schedule{Decay: 0.99, Minimum: 0.01}
	}
	return Schedule{Decay: 1, Minimum: 0}
}

// Schedule returns the exploration schedule, falling back to the variant's defaults.
func (cfg *TrainingConfig) Schedule(variant Variant) Schedule {
	def := DefaultSchedule(variant)
	return Schedule{
		Decay:   cfg.GetHyperParamOrDefault(EpsilonDecayKey, def.Decay),
		Minimum: cfg.GetHyperParamOrDefault(EpsilonMinKey, def.Minimum),
	}
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		if duration, err := time.ParseDuration(val); err != nil {
			return nil, nil, err
		} else {
			innerCtx, cancel := context.WithTimeout(ctx, duration)
			return innerCtx, cancel, nil
		}
	}
	// Without a deadline, training runs until the caller cancels.
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}
