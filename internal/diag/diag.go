// Package diag implements the lowering core's two-tier error model:
// user diagnostics (span-tagged, recoverable — the driver can continue
// with other functions) and internal compiler bugs (span-tagged
// assertions that carry a debug dump of the offending HIR node).
package diag

import (
	"fmt"

	"hirmir/internal/source"
)

// Severity orders diagnostics for display and gating.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	default:
		return "unknown"
	}
}

// Code enumerates the user-facing diagnostic codes the lowering core can
// raise. These are all "user errors": the type checker did not (and
// could not) rule them out before lowering.
type Code uint16

const (
	CodeUnknown Code = iota
	ErrRefutablePatternInLet
	ErrUnknownField
	ErrInvalidCast
	ErrMissingFieldNoBase
	ErrBreakOutsideLoop
	ErrContinueOutsideLoop
	ErrNonExhaustiveDestructure
	ErrOperandTypeMismatch
	ErrYieldOutsideGenerator
)

func (c Code) String() string {
	switch c {
	case ErrRefutablePatternInLet:
		return "E0005:refutable-pattern-in-let"
	case ErrUnknownField:
		return "E0609:unknown-field"
	case ErrInvalidCast:
		return "E0606:invalid-cast"
	case ErrMissingFieldNoBase:
		return "E0063:missing-field"
	case ErrBreakOutsideLoop:
		return "E0268:break-outside-loop"
	case ErrContinueOutsideLoop:
		return "E0268:continue-outside-loop"
	case ErrNonExhaustiveDestructure:
		return "E0004:non-exhaustive-destructure"
	case ErrOperandTypeMismatch:
		return "E0308:operand-type-mismatch"
	case ErrYieldOutsideGenerator:
		return "E0627:yield-outside-generator"
	default:
		return "E0000:unknown"
	}
}

// Note attaches secondary context to a Diagnostic.
type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is a single user-facing lowering failure.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s[%s] %s (%s)", d.Severity, d.Code, d.Message, d.Primary)
}

// UserError constructs a SevError diagnostic that also satisfies `error`,
// for `LowerFunction` call sites that want to `return nil, err`.
func UserError(code Code, span source.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Severity: SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	}
}

// ICE ("internal compiler error") signals a violated invariant the type
// checker should already have guaranteed — e.g. an `if` condition whose
// static type is not bool. ICE is raised via panic and recovered at the
// top of LowerFunction (see internal/mirbuild), never silently ignored
// or retried.
type ICE struct {
	Span   source.Span
	Detail string
}

func (e ICE) Error() string {
	return fmt.Sprintf("internal compiler error at %s: %s", e.Span, e.Detail)
}

// Bug panics with an ICE. Call sites use this for "should never happen"
// conditions that the external type checker is contractually supposed to
// have already ruled out.
func Bug(span source.Span, format string, args ...any) {
	panic(ICE{Span: span, Detail: fmt.Sprintf(format, args...)})
}

// Reporter receives diagnostics as they are produced. A nil Reporter
// silently drops them (the returned error from LowerFunction is always
// the primary channel; Reporter is for drivers that want to keep going
// and collect every diagnostic across many functions).
type Reporter interface {
	Report(d Diagnostic)
}

// Bag accumulates diagnostics in emission order: a simple, capped
// collection used by a driver that lowers many functions and wants to
// report everything at the end.
type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag creates a Bag capped at max entries (0 means unlimited).
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Report implements Reporter.
func (b *Bag) Report(d Diagnostic) {
	if b == nil {
		return
	}
	if b.max > 0 && len(b.items) >= b.max {
		return
	}
	b.items = append(b.items, d)
}

// Items returns the accumulated diagnostics in emission order.
func (b *Bag) Items() []Diagnostic {
	if b == nil {
		return nil
	}
	return b.items
}

// HasErrors reports whether any accumulated diagnostic is SevError.
func (b *Bag) HasErrors() bool {
	for _, d := range b.Items() {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}
