package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
)

// Rule names reported in findings.
const (
	RuleOpenTag        = "php_open_tag"
	RulePluginHeader   = "plugin_header"
	RuleABSPATHGuard   = "abspath_guard"
	RuleForbiddenCall  = "forbidden_call"
	RuleDelimiters     = "balanced_delimiters"
	RuleActionCallback = "add_action_callback"
	RuleCartSubtotal   = "cart_subtotal_property"
)

var ForbiddenFunctions = []string{"eval", "exec", "system", "shell_exec", "passthru", "base64_decode"}

var (
	pluginHeaderRe = regexp.MustCompile(`(?s)/\*.*?Plugin Name:.*?\*/`)
	abspathRe      = regexp.MustCompile(`defined\s*\(\s*['"]ABSPATH['"]\s*\)`)
	forbiddenRe    = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_>$:])(` + strings.Join(ForbiddenFunctions, "|") + `)\s*\(`)
	addActionRe    = regexp.MustCompile(`add_(?:action|filter)\s*\(\s*['"][^'"]+['"]\s*,\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`)
	functionDeclRe = regexp.MustCompile(`(?i)\bfunction\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	cartSubtotalRe = regexp.MustCompile(`WC\(\)\s*->\s*cart\s*->\s*subtotal\b`)
)

// StaticPluginAnalyzer checks generated WooCommerce plugins against the rules
// the instruction prompt asks the model to follow.
type StaticPluginAnalyzer struct{}

var _ repository.PluginValidator = (*StaticPluginAnalyzer)(nil)

func NewStaticPluginAnalyzer() *StaticPluginAnalyzer {
	return &StaticPluginAnalyzer{}
}

func (a *StaticPluginAnalyzer) Validate(code string) []*entity.Finding {
	if strings.TrimSpace(code) == "" {
		return []*entity.Finding{{
			Rule:     RuleOpenTag,
			Severity: entity.SeverityError,
			Message:  "empty plugin source",
		}}
	}

	masked := maskNonCode(code)

	var findings []*entity.Finding
	findings = append(findings, a.checkStructure(code)...)
	findings = append(findings, a.checkForbiddenCalls(code, masked)...)
	findings = append(findings, a.checkDelimiters(masked)...)
	findings = append(findings, a.checkActionCallbacks(code, masked)...)
	findings = append(findings, a.checkCartSubtotal(code, masked)...)
	return findings
}

func (a *StaticPluginAnalyzer) checkStructure(code string) []*entity.Finding {
	var findings []*entity.Finding

	if !strings.HasPrefix(code, "<?php") {
		findings = append(findings, &entity.Finding{
			Rule:     RuleOpenTag,
			Severity: entity.SeverityError,
			Message:  "plugin source does not start with <?php",
			Line:     1,
		})
	}
	if !pluginHeaderRe.MatchString(code) {
		findings = append(findings, &entity.Finding{
			Rule:     RulePluginHeader,
			Severity: entity.SeverityError,
			Message:  "missing plugin header comment with Plugin Name",
		})
	}
	if !abspathRe.MatchString(code) {
		findings = append(findings, &entity.Finding{
			Rule:     RuleABSPATHGuard,
			Severity: entity.SeverityWarning,
			Message:  "missing ABSPATH guard against direct access",
		})
	}
	return findings
}

func (a *StaticPluginAnalyzer) checkForbiddenCalls(code, masked string) []*entity.Finding {
	var findings []*entity.Finding
	for _, m := range forbiddenRe.FindAllStringSubmatchIndex(masked, -1) {
		name := strings.ToLower(masked[m[4]:m[5]])
		findings = append(findings, &entity.Finding{
			Rule:     RuleForbiddenCall,
			Severity: entity.SeverityError,
			Message:  fmt.Sprintf("call to forbidden function %s()", name),
			Line:     lineAt(code, m[4]),
		})
	}
	return findings
}

func (a *StaticPluginAnalyzer) checkDelimiters(masked string) []*entity.Finding {
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	type open struct {
		ch   byte
		line int
	}
	var stack []open
	line := 1

	for i := 0; i < len(masked); i++ {
		c := masked[i]
		switch c {
		case '\n':
			line++
		case '(', '[', '{':
			stack = append(stack, open{ch: c, line: line})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				return []*entity.Finding{{
					Rule:     RuleDelimiters,
					Severity: entity.SeverityError,
					Message:  fmt.Sprintf("unexpected %q", c),
					Line:     line,
				}}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		last := stack[len(stack)-1]
		return []*entity.Finding{{
			Rule:     RuleDelimiters,
			Severity: entity.SeverityError,
			Message:  fmt.Sprintf("unclosed %q", last.ch),
			Line:     last.line,
		}}
	}
	return nil
}

func (a *StaticPluginAnalyzer) checkActionCallbacks(code, masked string) []*entity.Finding {
	declared := lo.SliceToMap(functionDeclRe.FindAllStringSubmatch(masked, -1), func(m []string) (string, struct{}) {
		return strings.ToLower(m[1]), struct{}{}
	})

	var findings []*entity.Finding
	for _, m := range addActionRe.FindAllStringSubmatchIndex(code, -1) {
		// Hook registrations inside comments are not code.
		if masked[m[0]] == ' ' {
			continue
		}
		name := code[m[2]:m[3]]
		if _, ok := declared[strings.ToLower(name)]; ok || isBuiltinCallback(name) {
			continue
		}
		findings = append(findings, &entity.Finding{
			Rule:     RuleActionCallback,
			Severity: entity.SeverityError,
			Message:  fmt.Sprintf("hook callback %s is not declared in the plugin", name),
			Line:     lineAt(code, m[2]),
		})
	}
	return findings
}

func (a *StaticPluginAnalyzer) checkCartSubtotal(code, masked string) []*entity.Finding {
	var findings []*entity.Finding
	for _, m := range cartSubtotalRe.FindAllStringIndex(masked, -1) {
		findings = append(findings, &entity.Finding{
			Rule:     RuleCartSubtotal,
			Severity: entity.SeverityWarning,
			Message:  "use WC()->cart->get_subtotal() instead of the subtotal property",
			Line:     lineAt(code, m[0]),
		})
	}
	return findings
}

func isBuiltinCallback(name string) bool {
	switch name {
	case "__return_true", "__return_false", "__return_null", "__return_empty_string", "__return_empty_array", "__return_zero":
		return true
	}
	return false
}

// maskNonCode blanks out comments and string literals, keeping newlines so
// offsets and line numbers still match the input.
func maskNonCode(src string) string {
	out := []byte(src)
	n := len(src)
	blank := func(from, to int) {
		for k := from; k < to; k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '#' || (c == '/' && i+1 < n && src[i+1] == '/'):
			end := n
			if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
				end = i + j
			}
			blank(i, end)
			i = end
		case c == '/' && i+1 < n && src[i+1] == '*':
			end := n
			if j := strings.Index(src[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			blank(i, end)
			i = end
		case c == '?' && i+1 < n && src[i+1] == '>':
			// inline HTML up to the next opening tag
			end := n
			if j := strings.Index(src[i:], "<?php"); j >= 0 {
				end = i + j
			}
			blank(i, end)
			i = end
		case c == '\'' || c == '"':
			j := i + 1
			for j < n && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			end := min(j+1, n)
			blank(i, end)
			i = end
		default:
			i++
		}
	}
	return string(out)
}

func lineAt(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}
