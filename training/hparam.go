package training

import "sync"

// HyperparameterConfig is one finetuning run's LoRA and optimizer
// configuration.
type HyperparameterConfig struct {
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	NumEpochs    int     `json:"num_epochs"`
	WarmupRatio  float64 `json:"warmup_ratio"`
	LoraR        int     `json:"lora_r"`
	LoraAlpha    int     `json:"lora_alpha"`
	LoraDropout  float64 `json:"lora_dropout"`
}

// defaultHyperparameters is the documented-default configuration returned
// when no per-type best configuration has been recorded yet. These values
// sit near the middle of the search space this was ported from
// (learning_rate in [1e-6, 1e-3], lora_r in [4, 64]) rather than at its
// edges.
var defaultHyperparameters = HyperparameterConfig{
	LearningRate: 2e-4,
	BatchSize:    16,
	NumEpochs:    3,
	WarmupRatio:  0.1,
	LoraR:        16,
	LoraAlpha:    32,
	LoraDropout:  0.05,
}

// HyperparameterStore tracks the best-known hyperparameter configuration
// per artifact type. Live Bayesian search over the configuration space is
// out of scope here: RecordBest is meant to be fed by an offline or
// external tuning process, and LoadBest falls back to the documented
// default for any type that hasn't reported one yet.
type HyperparameterStore struct {
	mu   sync.RWMutex
	best map[string]HyperparameterConfig
}

// NewHyperparameterStore builds an empty store; every LoadBest call
// returns the documented default until RecordBest is called for a type.
func NewHyperparameterStore() *HyperparameterStore {
	return &HyperparameterStore{best: make(map[string]HyperparameterConfig)}
}

// LoadBest returns the best recorded configuration for artifactType, or
// the documented default if none has been recorded.
func (s *HyperparameterStore) LoadBest(artifactType string) HyperparameterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.best[artifactType]; ok {
		return cfg
	}
	return defaultHyperparameters
}

// RecordBest stores a configuration as the best known for artifactType.
func (s *HyperparameterStore) RecordBest(artifactType string, cfg HyperparameterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.best[artifactType] = cfg
}

// DefaultHyperparameters returns the documented default configuration.
func DefaultHyperparameters() HyperparameterConfig {
	return defaultHyperparameters
}
