// Package sanitize cleans raw model completions into plain plugin source.
//
// Cleanup is an ordered list of pure text-to-text steps. Order matters:
// StripPreamble must run before RemoveFences, otherwise a leading "```php"
// fence would be removed first and the preamble rule could no longer see
// where the code starts.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Step is a single named, pure transformation.
type Step struct {
	Name  string
	Apply func(string) string
}

// Pipeline applies its steps in order.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Default is the cleanup chain used by the relay.
func Default() *Pipeline {
	return NewPipeline(StripPreamble, RemoveFences, NormalizeQuotes, TrimSpace)
}

func (p *Pipeline) Steps() []string {
	return lo.Map(p.steps, func(s Step, _ int) string { return s.Name })
}

// Apply runs every step over raw and returns the cleaned text.
func (p *Pipeline) Apply(raw string) string {
	return lo.Reduce(p.steps, func(acc string, s Step, _ int) string {
		return s.Apply(acc)
	}, raw)
}

// Trace is Apply that also reports which steps changed the text.
func (p *Pipeline) Trace(raw string) (string, []string) {
	var changed []string
	out := raw
	for _, s := range p.steps {
		next := s.Apply(out)
		if next != out {
			changed = append(changed, s.Name)
		}
		out = next
	}
	return out, changed
}

var (
	preambleRe = regexp.MustCompile(`^[^<]*<\?php`)
	fenceRe    = regexp.MustCompile("```php|```")

	quoteReplacer = strings.NewReplacer(
		"\u201c", `"`, "\u201d", `"`,
		"\u2018", "'", "\u2019", "'",
	)
)

// StripPreamble drops chatter before the opening PHP tag. Text that contains a
// '<' before the tag is left alone.
var StripPreamble = Step{
	Name: "strip_preamble",
	Apply: func(s string) string {
		return preambleRe.ReplaceAllLiteralString(s, "<?php")
	},
}

// RemoveFences deletes markdown code fences.
var RemoveFences = Step{
	Name: "remove_fences",
	Apply: func(s string) string {
		return fenceRe.ReplaceAllLiteralString(s, "")
	},
}

// NormalizeQuotes maps typographic quotes to ASCII.
var NormalizeQuotes = Step{
	Name:  "normalize_quotes",
	Apply: quoteReplacer.Replace,
}

var TrimSpace = Step{
	Name:  "trim_space",
	Apply: strings.TrimSpace,
}
