// Package expansion bounds nested generic-type expansion so a recursive
// generic definition cannot stall the editor: a stack tracks the chain of
// type names currently being expanded, and a static pattern registry caps
// the allowed depth for known-recursive shapes.
package expansion

import (
	"fmt"
	"regexp"
	"strings"
)

// TypeExpansionInfo reports the outcome of a depth check.
type TypeExpansionInfo struct {
	TypeName  string
	Depth     int
	MaxDepth  int
	Truncated bool
	Path      []string
	Pattern   string // name of the matched pattern, empty when none matched
}

type pattern struct {
	name     string
	re       *regexp.Regexp
	maxDepth int
	// sameGroups additionally requires capture groups 1 and 2 to be equal;
	// Go's regexp has no backreferences to express that in the pattern.
	sameGroups bool
}

// knownPatterns is a static registry of recursive type shapes seen in
// practice, each with a suggested max expansion depth.
var knownPatterns = []pattern{
	{name: "self-referential generic", re: regexp.MustCompile(`^(\w+)<(\w+)<`), maxDepth: 15, sameGroups: true},
	{name: "generated ORM type", re: regexp.MustCompile(`(?i)(Model|Entity|Record)(Query|Builder|Relation)$`), maxDepth: 30},
	{name: "recursive router type", re: regexp.MustCompile(`(?i)Router(Group|Node|Tree)$`), maxDepth: 25},
	{name: "linked container", re: regexp.MustCompile(`(?i)^(List|Tree|Node)<`), maxDepth: 40},
}

// ObserverFunc is invoked whenever a check truncates expansion. Returning an
// error never propagates; it is swallowed by the guard.
type ObserverFunc func(info TypeExpansionInfo) error

// Guard tracks the stack of type names currently being expanded.
type Guard struct {
	configuredMax int
	truncations   int
	stack         []string
	observer      ObserverFunc
	onWarn        func(msg string)
}

// New constructs a Guard with the given configured max depth. observer and
// onWarn may be nil.
func New(configuredMax int, observer ObserverFunc, onWarn func(msg string)) *Guard {
	return &Guard{
		configuredMax: configuredMax,
		observer:      observer,
		onWarn:        onWarn,
	}
}

// Push records name as the innermost type currently being expanded.
func (g *Guard) Push(name string) {
	g.stack = append(g.stack, name)
}

// Pop removes the innermost type name. No-op on an empty stack.
func (g *Guard) Pop() {
	if len(g.stack) == 0 {
		return
	}

	g.stack = g.stack[:len(g.stack)-1]
}

// Depth returns the current stack size.
func (g *Guard) Depth() int {
	return len(g.stack)
}

// TruncationCount returns the number of checks that returned truncated=true.
func (g *Guard) TruncationCount() int {
	return g.truncations
}

// MatchPattern consults the static pattern registry for name, returning the
// matched pattern's name and suggested max depth. ok is false when nothing
// matched.
func MatchPattern(name string) (patternName string, maxDepth int, ok bool) {
	for _, p := range knownPatterns {
		if p.sameGroups {
			if m := p.re.FindStringSubmatch(name); m != nil && m[1] == m[2] {
				return p.name, p.maxDepth, true
			}

			continue
		}

		if p.re.MatchString(name) {
			return p.name, p.maxDepth, true
		}
	}

	return "", 0, false
}

// Check evaluates whether expanding name at depth should be truncated.
// effectiveMax is min(configuredMax, patternMax(name)); when no pattern
// matches, configuredMax alone governs.
func (g *Guard) Check(name string, depth int) TypeExpansionInfo {
	effectiveMax := g.configuredMax

	patternName, patternMax, matched := MatchPattern(name)
	if matched && patternMax < effectiveMax {
		effectiveMax = patternMax
	}

	info := TypeExpansionInfo{
		TypeName:  name,
		Depth:     depth,
		MaxDepth:  effectiveMax,
		Truncated: depth >= effectiveMax,
		Path:      append([]string(nil), g.stack...),
		Pattern:   patternName,
	}

	if info.Truncated {
		g.truncations++

		if g.onWarn != nil {
			msg := fmt.Sprintf("type expansion truncated at depth %d for %q", depth, name)
			if patternName != "" {
				msg += fmt.Sprintf(" (pattern: %s)", patternName)
			}

			g.onWarn(msg)
		}

		if g.observer != nil {
			_ = g.observer(info)
		}
	}

	return info
}

// DetectCycle returns the first type name that repeats within the last
// window stack entries, or "" with ok=false when none repeats.
func (g *Guard) DetectCycle(window int) (name string, ok bool) {
	start := 0
	if len(g.stack) > window {
		start = len(g.stack) - window
	}

	seen := make(map[string]struct{})

	for _, n := range g.stack[start:] {
		if _, dup := seen[n]; dup {
			return n, true
		}

		seen[n] = struct{}{}
	}

	return "", false
}

// FormatReport renders a human-readable, multi-line description of a
// truncation, including the expansion path and a mitigation hint.
func FormatReport(info TypeExpansionInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "type expansion truncated: %s\n", info.TypeName)
	fmt.Fprintf(&b, "  depth:  %d (max %d)\n", info.Depth, info.MaxDepth)

	if info.Pattern != "" {
		fmt.Fprintf(&b, "  matched pattern: %s\n", info.Pattern)
	}

	if len(info.Path) > 0 {
		fmt.Fprintf(&b, "  path: %s\n", strings.Join(info.Path, " -> "))
	}

	b.WriteString("  hint: add an explicit type alias or split the generic to avoid deep recursive expansion\n")

	return b.String()
}
