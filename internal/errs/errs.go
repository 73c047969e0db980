// Package errs defines the structured error taxonomy shared by the
// config, resource, and event packages.
//
// Definition errors surface malformed schema declarations at
// class-inspection time. Validation errors collect every violation
// found while checking raw values against a schema. Invocation errors
// signal runtime misuse of an immutable object. Invariant errors
// indicate an assembly bug, such as an unresolvable nested-resource
// key. Deserialization errors mark records that could not be decoded
// and were degraded rather than dropped.
package errs

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// DefinitionError reports a malformed schema or resource declaration.
// It is always fatal to the definition under inspection.
type DefinitionError struct {
	Message string
	// NotImplemented marks declarations that are structurally valid but
	// outside the supported surface, e.g. an unsupported map key type.
	NotImplemented bool
}

func (e *DefinitionError) Error() string { return e.Message }

// Definitionf builds a DefinitionError from a format string.
func Definitionf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

// NotImplementedf builds a DefinitionError flagged as a not-implemented
// class of failure.
func NotImplementedf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...), NotImplemented: true}
}

// ValidationEntry is a single violation found while validating raw
// config values, located by its path within the value tree.
type ValidationEntry struct {
	Path    cty.Path
	Message string
	// Missing marks a violation caused by an absent required entry, as
	// opposed to a present-but-invalid value.
	Missing bool
}

func (v ValidationEntry) String() string {
	if p := FormatPath(v.Path); p != "" {
		return fmt.Sprintf("at %s: %s", p, v.Message)
	}
	return v.Message
}

// ValidationError aggregates every violation found during one
// validation pass. It is surfaced once, to the caller that triggered
// validation.
type ValidationError struct {
	Header  string
	Entries []ValidationEntry
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Header != "" {
		b.WriteString(e.Header)
	} else {
		b.WriteString("invalid config")
	}
	for _, entry := range e.Entries {
		b.WriteString("\n  - ")
		b.WriteString(entry.String())
	}
	return b.String()
}

// HasPathKey reports whether any entry's path ends at the given
// attribute name. Used by callers that need to know whether a specific
// key was implicated.
func (e *ValidationError) HasPathKey(name string) bool {
	for _, entry := range e.Entries {
		if len(entry.Path) == 0 {
			continue
		}
		if step, ok := entry.Path[len(entry.Path)-1].(cty.GetAttrStep); ok && step.Name == name {
			return true
		}
	}
	return false
}

// InvocationError reports runtime misuse of an immutable config or
// resource object. The message always carries actionable guidance.
type InvocationError struct {
	Message string
}

func (e *InvocationError) Error() string { return e.Message }

// Invocationf builds an InvocationError from a format string.
func Invocationf(format string, args ...any) *InvocationError {
	return &InvocationError{Message: fmt.Sprintf(format, args...)}
}

// InvariantError reports a violated internal invariant, typically a
// definitions-assembly bug. It is not user-recoverable at runtime.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string { return e.Message }

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// Invariant fails with an InvariantError when cond is false.
func Invariant(cond bool, format string, args ...any) error {
	if !cond {
		return Invariantf(format, args...)
	}
	return nil
}

// DeserializationError marks a persisted record that could not be
// decoded into its declared shape. Consumers degrade such records
// rather than aborting a replay.
type DeserializationError struct {
	Message string
	Cause   error
}

func (e *DeserializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DeserializationError) Unwrap() error { return e.Cause }

// FormatPath renders a cty.Path as a dotted/indexed selector for error
// messages, e.g. "root:servers[2]:port".
func FormatPath(path cty.Path) string {
	var b strings.Builder
	for _, step := range path {
		switch s := step.(type) {
		case cty.GetAttrStep:
			if b.Len() > 0 {
				b.WriteString(":")
			}
			b.WriteString(s.Name)
		case cty.IndexStep:
			switch s.Key.Type() {
			case cty.Number:
				idx, _ := s.Key.AsBigFloat().Int64()
				fmt.Fprintf(&b, "[%d]", idx)
			case cty.String:
				fmt.Fprintf(&b, "[%q]", s.Key.AsString())
			}
		}
	}
	return b.String()
}
