package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FallbackCode is returned in place of generated code whenever generation fails.
const FallbackCode = "<?php\n// Error generating plugin"

// PluginFileName is the fixed name of the downloadable plugin artifact.
const PluginFileName = "custom-plugin.php"

// ErrGenerationFailed wraps every failure of the external generation call.
var ErrGenerationFailed = errors.New("plugin generation failed")

type GenerationStatus string

const (
	GenerationStatusOK     GenerationStatus = "ok"
	GenerationStatusFailed GenerationStatus = "failed"
)

// Generation is the journal record of a single relay call.
type Generation struct {
	ID         string           `json:"id" bson:"id"`
	Prompt     string           `json:"prompt" bson:"prompt"`
	Code       string           `json:"code" bson:"code"`
	Status     GenerationStatus `json:"status" bson:"status"`
	Error      string           `json:"error,omitempty" bson:"error,omitempty"`
	Provider   string           `json:"provider" bson:"provider"`
	Model      string           `json:"model" bson:"model"`
	Findings   []*Finding       `json:"findings,omitempty" bson:"findings,omitempty"`
	DurationMS int64            `json:"duration_ms" bson:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
}

func NewGeneration(prompt, provider, model string) *Generation {
	return &Generation{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Provider:  provider,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// Succeed records the sanitized code and the elapsed time since creation.
func (g *Generation) Succeed(code string) {
	g.Code = code
	g.Status = GenerationStatusOK
	g.Error = ""
	g.DurationMS = time.Since(g.CreatedAt).Milliseconds()
}

// Fail replaces the code with FallbackCode and keeps the cause for the journal.
func (g *Generation) Fail(err error) {
	g.Code = FallbackCode
	g.Status = GenerationStatusFailed
	if err != nil {
		g.Error = err.Error()
	}
	g.DurationMS = time.Since(g.CreatedAt).Milliseconds()
}

func (g *Generation) IsOK() bool {
	return g.Status == GenerationStatusOK
}
