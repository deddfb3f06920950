package core

import "time"

// Environment variables recognized by Config.
const (
	EnvRedisURL    = "FORGE_REDIS_URL"
	EnvNamespace   = "FORGE_NAMESPACE"
	EnvPort        = "PORT"
	EnvDevMode     = "FORGE_DEV_MODE"
	EnvLogLevel    = "FORGE_LOG_LEVEL"
	EnvLogBackend  = "FORGE_LOG_BACKEND"
	EnvOTLPEndpoint = "FORGE_OTLP_ENDPOINT"
)

// Validation thresholds. Deliberately four independent constants rather than
// one unified value -- see DESIGN.md "validator thresholds" open question.
const (
	// ValidIsValidThreshold is the minimum score for a validation Result's IsValid.
	ValidIsValidThreshold = 60

	// PoolAdmissionFloor is the minimum score accepted into the finetuning pool at all.
	PoolAdmissionFloor = 70

	// OrchestratorAcceptThreshold is the minimum score the ladder accepts without retry.
	OrchestratorAcceptThreshold = 80

	// PoolAdmissionTarget is the score at which a generated artifact is admitted
	// to the finetuning pool as a feedback-sourced example.
	PoolAdmissionTarget = 85
)

// Finetuning pool thresholds.
const (
	DefaultIncrementalThreshold = 50
	DefaultMajorThreshold       = 2000
)

// Dynamic batch sizing bounds.
const (
	DefaultMinBatch = 20
	DefaultMaxBatch = 100
)

// Version Store defaults.
const (
	// MaxVersionsPerArtifact bounds the history kept per artifact_id.
	MaxVersionsPerArtifact = 50

	// OrphanedArtifactsFolder is the sentinel folder for artifacts with no folder_id.
	OrphanedArtifactsFolder = "Orphaned Artifacts"
)

// Job table defaults.
const (
	DefaultMaxJobs       = 100
	DefaultJobRetention  = 1 * time.Hour
	DefaultMaxRetries    = 4
)

// Failure case capture threshold: below this score a validation failure is
// mined as a hard negative.
const FailureCaptureThreshold = 75

// DefaultCacheTTL is how long a cached context assembly stays valid before
// the caching context provider re-builds it.
const DefaultCacheTTL = 1 * time.Hour

// Reward calculator defaults.
const (
	DefaultRewardDecayRate       = 0.95
	DefaultDifficultyWeight      = 1.5
	DefaultBalanceThreshold      = 100
	RewardFloorAfterDecay        = 0.1
	RewardFloorAfterBalance      = 0.5
)
