package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
	"pluginrelay/internal/infrastructure/sanitize"
)

// PluginGenerator turns a free-text request into plugin code. It never returns
// an error: failures come back as a Generation with FallbackCode and a failed
// status.
type PluginGenerator interface {
	Generate(ctx context.Context, prompt string) *entity.Generation
	Provider() string
	Model() string
}

var _ PluginGenerator = (*PluginGeneratorService)(nil)

const historyWriteTimeout = 5 * time.Second

type PluginGeneratorService struct {
	llm       repository.LLMGenerator
	prompt    entity.Prompt
	sanitizer *sanitize.Pipeline

	validator repository.PluginValidator
	history   repository.GenerationRepository

	logger *slog.Logger

	timeout time.Duration
	slots   *semaphore.Weighted
}

type ServiceOption func(*PluginGeneratorService)

// WithValidator enables static analysis of generated code.
func WithValidator(v repository.PluginValidator) ServiceOption {
	return func(s *PluginGeneratorService) { s.validator = v }
}

// WithHistory journals every generation to repo.
func WithHistory(repo repository.GenerationRepository) ServiceOption {
	return func(s *PluginGeneratorService) { s.history = repo }
}

// WithTimeout bounds each call to the external API. Zero means no bound.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *PluginGeneratorService) { s.timeout = d }
}

// WithMaxConcurrent caps simultaneous calls to the external API. Zero means unlimited.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *PluginGeneratorService) {
		if n > 0 {
			s.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithPrompt replaces the instruction template.
func WithPrompt(p entity.Prompt) ServiceOption {
	return func(s *PluginGeneratorService) { s.prompt = p }
}

func NewPluginGeneratorService(llm repository.LLMGenerator, logger *slog.Logger, opts ...ServiceOption) *PluginGeneratorService {
	s := &PluginGeneratorService{
		llm:       llm,
		prompt:    entity.WooCommercePluginPrompt,
		sanitizer: sanitize.Default(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PluginGeneratorService) Provider() string { return s.llm.Provider() }

func (s *PluginGeneratorService) Model() string { return s.llm.Model() }

// Generate runs the full relay pipeline:
// 1) compose the instruction template with the request
// 2) one completion from the external API
// 3) sanitize
// 4) static analysis (informational only)
// 5) journal
func (s *PluginGeneratorService) Generate(ctx context.Context, prompt string) *entity.Generation {
	gen := entity.NewGeneration(prompt, s.llm.Provider(), s.llm.Model())
	log := s.logger.With("generation_id", gen.ID, "provider", gen.Provider, "model", gen.Model)

	log.Info("start generation", "prompt_bytes", len(prompt))

	raw, err := s.complete(ctx, s.prompt.Compose(prompt))
	if err != nil {
		gen.Fail(err)
		log.Error("generation failed", "err", err, "duration_ms", gen.DurationMS)
		metrics.IncGeneration(gen.Provider, gen.Model, string(gen.Status))
		s.record(ctx, gen, log)
		return gen
	}

	code, changed := s.sanitizer.Trace(raw)
	for _, step := range changed {
		metrics.IncSanitizeChange(step)
	}
	gen.Succeed(code)

	if s.validator != nil {
		gen.Findings = s.validator.Validate(code)
		for _, f := range gen.Findings {
			metrics.IncValidationFinding(f.Rule, string(f.Severity))
			log.Debug("plugin finding", "rule", f.Rule, "severity", f.Severity, "line", f.Line, "message", f.Message)
		}
	}

	metrics.IncGeneration(gen.Provider, gen.Model, string(gen.Status))
	log.Info("generation done",
		"duration_ms", gen.DurationMS,
		"code_bytes", len(code),
		"sanitized_steps", changed,
		"findings", len(gen.Findings),
	)

	s.record(ctx, gen, log)
	return gen
}

func (s *PluginGeneratorService) complete(ctx context.Context, composite string) (string, error) {
	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			metrics.IncError("generator", "acquire_slot")
			return "", fmt.Errorf("%w: waiting for a free slot: %v", entity.ErrGenerationFailed, err)
		}
		defer s.slots.Release(1)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	metrics.IncInFlight()
	defer metrics.DecInFlight()

	start := time.Now()
	raw, err := s.llm.Generate(ctx, composite)
	metrics.ObserveLLMDuration(s.llm.Provider(), s.llm.Model(), time.Since(start))
	return raw, err
}

// record is best effort: the caller's response never depends on it.
func (s *PluginGeneratorService) record(ctx context.Context, gen *entity.Generation, log *slog.Logger) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.history.Save(ctx, gen); err != nil {
		metrics.IncError("generator", "history_save")
		log.Warn("save generation to history failed", "err", err)
	}
}
