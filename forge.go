// Package forge is the composition root: it wires core configuration,
// telemetry, the version store, event bus, finetuning pool, feedback log,
// validator, and model backends into one running Orchestrator. Call New
// once per process; the returned Forge owns every collaborator's
// lifecycle.
package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/eventbus"
	"github.com/notekiln/forge/feedback"
	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/generation"
	"github.com/notekiln/forge/telemetry"
	"github.com/notekiln/forge/training"
	"github.com/notekiln/forge/validation"
	"github.com/notekiln/forge/versionstore"
)

// Forge bundles the running collaborators behind the generation
// Orchestrator. Most callers only need Orchestrator and Feedback; the rest
// are exposed for operational commands (stats, manual batch export).
type Forge struct {
	Config       *core.Config
	Logger       core.Logger
	Orchestrator *generation.Orchestrator
	Feedback     *feedback.Store
	Pool         *finetune.Pool
	Bus          *eventbus.Bus
	Versions     *versionstore.Store

	notifier *feedback.Notifier
}

// buildState accumulates construction-time choices across Option calls
// before New assembles the real collaborators.
type buildState struct {
	coreOpts []core.Option

	dataDir     string
	feedbackDir string

	genOpts []generation.Option

	thresholdsSet        bool
	incrementalThreshold int
	majorThreshold       int

	notifierCfg   *feedback.NotifierConfig
	validationDir string
}

// Option configures Forge at construction time.
type Option func(*buildState)

// WithCoreOptions threads functional options straight through to
// core.NewConfig (e.g. core.WithName, core.WithRedisURL).
func WithCoreOptions(opts ...core.Option) Option {
	return func(b *buildState) { b.coreOpts = append(b.coreOpts, opts...) }
}

// WithDataDir sets the root directory the version store persists
// artifacts under. Defaults to "./data/versions".
func WithDataDir(dir string) Option {
	return func(b *buildState) { b.dataDir = dir }
}

// WithFeedbackDir sets the root directory the feedback log persists
// events under. Defaults to "./data/feedback".
func WithFeedbackDir(dir string) Option {
	return func(b *buildState) { b.feedbackDir = dir }
}

// WithGenerationOptions threads functional options straight through to
// generation.New (backends, context provider, judge, HTML renderer, notes
// provider, ladder override).
func WithGenerationOptions(opts ...generation.Option) Option {
	return func(b *buildState) { b.genOpts = append(b.genOpts, opts...) }
}

// WithPoolThresholds overrides the finetuning pool's incremental/major
// batch thresholds (defaults: 50 / 2000).
func WithPoolThresholds(incremental, major int) Option {
	return func(b *buildState) {
		b.thresholdsSet = true
		b.incrementalThreshold = incremental
		b.majorThreshold = major
	}
}

// WithMaintainerNotifications wires an SMTP notifier so a major training
// batch emails cfg.To, via finetune.Pool.OnMajorBatch.
func WithMaintainerNotifications(cfg feedback.NotifierConfig) Option {
	return func(b *buildState) { b.notifierCfg = &cfg }
}

// WithValidationOverrideDir points New at a directory of rule-set YAML
// files (one per artifact type) to layer on top of the validator's
// embedded defaults. Unset, only the embedded rule sets apply.
func WithValidationOverrideDir(dir string) Option {
	return func(b *buildState) { b.validationDir = dir }
}

// New builds every collaborator and returns a running Forge. The returned
// Forge.Orchestrator is ready to accept Submit/Generate calls immediately;
// call Close when the process shuts down.
func New(opts ...Option) (*Forge, error) {
	b := &buildState{
		dataDir:     "data/versions",
		feedbackDir: "data/feedback",
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg, err := core.NewConfig(b.coreOpts...)
	if err != nil {
		return nil, fmt.Errorf("forge: building config: %w", err)
	}
	logger := cfg.Logger()

	if cfg.Telemetry.Enabled {
		if err := telemetry.Initialize(telemetry.Config{
			Enabled:      true,
			ServiceName:  cfg.Telemetry.ServiceName,
			Endpoint:     cfg.Telemetry.Endpoint,
			Provider:     "otel",
			SamplingRate: cfg.Telemetry.SamplingRate,
		}); err != nil {
			logger.Warn("telemetry initialization failed, continuing without it", map[string]interface{}{"error": err.Error()})
		}
	}

	vstore, err := versionstore.New(b.dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("forge: building version store: %w", err)
	}

	bus := eventbus.New(logger)

	validator, err := validation.New(logger)
	if err != nil {
		return nil, fmt.Errorf("forge: building validator: %w", err)
	}
	if b.validationDir != "" {
		if err := loadValidationOverrides(validator, b.validationDir); err != nil {
			return nil, fmt.Errorf("forge: loading validation overrides: %w", err)
		}
	}

	hardNegatives := training.NewHardNegativeMiner()

	poolOpts := []finetune.Option{finetune.WithHardNegativeMiner(hardNegatives)}
	if b.thresholdsSet {
		poolOpts = append(poolOpts, finetune.WithThresholds(b.incrementalThreshold, b.majorThreshold))
	}
	pool := finetune.NewPool(logger, poolOpts...)

	var notifier *feedback.Notifier
	if b.notifierCfg != nil {
		notifier, err = feedback.NewNotifier(*b.notifierCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("forge: building notifier: %w", err)
		}
		pool.OnMajorBatch = notifier.NotifyMaintainer
	}

	feedbackStore, err := feedback.New(b.feedbackDir, pool, logger)
	if err != nil {
		return nil, fmt.Errorf("forge: building feedback store: %w", err)
	}
	feedbackStore.WithHardNegativeMiner(hardNegatives)

	genOpts := b.genOpts
	if cfg.Cache.RedisURL != "" {
		genOpts = wireCachingContextProvider(cfg, logger, genOpts)
	}

	orchestrator, err := generation.New(cfg, vstore, bus, pool, validator, logger, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("forge: building orchestrator: %w", err)
	}

	return &Forge{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orchestrator,
		Feedback:     feedbackStore,
		Pool:         pool,
		Bus:          bus,
		Versions:     vstore,
		notifier:     notifier,
	}, nil
}

// wireCachingContextProvider appends generation.WithContextCache so it runs
// after any WithContextProvider the caller supplied via
// WithGenerationOptions, wrapping that provider in a Redis-backed cache.
func wireCachingContextProvider(cfg *core.Config, logger core.Logger, genOpts []generation.Option) []generation.Option {
	redisClient, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL:  cfg.Cache.RedisURL,
		Namespace: cfg.Cache.Namespace,
		Logger:    logger,
	})
	if err != nil {
		logger.Warn("redis context cache unavailable, continuing uncached", map[string]interface{}{"error": err.Error()})
		return genOpts
	}

	return append(genOpts, generation.WithContextCache(redisClient, cfg.Cache.Namespace, cfg.Cache.DefaultTTL))
}

// loadValidationOverrides layers every *.yaml file in dir onto validator
// via WithRuleSet, keyed by the rule set's own Type field rather than the
// filename.
func loadValidationOverrides(validator *validation.Validator, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		rs, err := validation.LoadRuleSetFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		validator.WithRuleSet(rs)
	}
	return nil
}

// Close stops the orchestrator's janitor goroutine. Jobs still running are
// left to finish on their own.
func (f *Forge) Close() {
	f.Orchestrator.Close()
}
