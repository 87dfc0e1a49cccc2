package uid

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/uidmgr/internal/debug"
)

// AnomalyKind classifies a diagnostic report
type AnomalyKind string

const (
	// AnomalyMissingUID: an Identifiable entity returned a nil embedded UID
	AnomalyMissingUID AnomalyKind = "missing_embedded_uid"
	// AnomalyTransientUID: a transient UID was synthesized for a non-identifiable entity type
	AnomalyTransientUID AnomalyKind = "transient_uid"
)

// Span is a source position range
type Span struct {
	Start int
	End   int
}

// Anomaly is a non-fatal observation made while wrapping or resolving
type Anomaly struct {
	Kind       AnomalyKind
	EntityType string
	Entity     string
	Span       *Span
	UID        string
}

func (a Anomaly) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %q", a.Kind, a.EntityType, a.Entity)
	if a.Span != nil {
		fmt.Fprintf(&b, " [%d-%d]", a.Span.Start, a.Span.End)
	}
	if a.UID != "" {
		fmt.Fprintf(&b, " via %s", a.UID)
	}
	return b.String()
}

// DiagnosticSink receives anomalies. Reports never change resolution results.
type DiagnosticSink interface {
	Report(Anomaly)
}

// DiagnosticFunc adapts a function to DiagnosticSink
type DiagnosticFunc func(Anomaly)

// Report implements DiagnosticSink
func (f DiagnosticFunc) Report(a Anomaly) { f(a) }

type nopSink struct{}

func (nopSink) Report(Anomaly) {}

// NopDiagnostics discards every report
var NopDiagnostics DiagnosticSink = nopSink{}

// debugSink writes anomalies to the debug log
type debugSink struct{}

func (debugSink) Report(a Anomaly) {
	debug.LogUID("%s\n", a)
}

// NewDebugSink returns a sink that writes to the debug log. It is inert
// unless debug output is enabled.
func NewDebugSink() DiagnosticSink {
	return debugSink{}
}

// Exemptions lists entity types that may legitimately lack an embedded UID.
// Patterns are doublestar globs matched against the package-qualified type
// name, e.g. "github.com/acme/model.Namespace" or "**/*.Project".
type Exemptions struct {
	patterns []string
}

// DefaultExemptionPatterns mirrors the entity kinds that are always resolved
// through their owner rather than their own identity
var DefaultExemptionPatterns = []string{"**/*.Namespace*", "**/*.Project*", "**/*.Instantiation*"}

// NewExemptions validates patterns and builds an exemption list
func NewExemptions(patterns []string) (*Exemptions, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exemption pattern %q", p)
		}
	}
	return &Exemptions{patterns: append([]string(nil), patterns...)}, nil
}

// Match reports whether entity's type is exempt
func (e *Exemptions) Match(entity any) bool {
	if e == nil || len(e.patterns) == 0 || entity == nil {
		return false
	}
	name := typeName(entity)
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns
func (e *Exemptions) Patterns() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.patterns...)
}

// typeName returns the type name with package path, minus pointer markers
func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
