package skill

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a SkillError, matching the error kinds spec §7 enumerates.
type Kind int

const (
	// KindInvalidPoolIndex is raised when an ID or string index is out of
	// range on lookup via a path that, unlike StoragePool.GetByID, must
	// report failure rather than return a zero value.
	KindInvalidPoolIndex Kind = iota
	// KindPoolSizeMismatch is raised when a parallel decode job finds a
	// chunk's declared length does not match consumption.
	KindPoolSizeMismatch
	// KindRestrictionViolation is raised when a field-level predicate fails.
	KindRestrictionViolation
	// KindPoolFixed is raised on structural mutation of a fixed pool. It is
	// also returned by StoragePool.Make on a pool without an allocator and
	// by SkillState.Append while any pool has pending deletions.
	KindPoolFixed
	// KindArrayLengthMismatch is raised writing the wrong-size constant
	// length array.
	KindArrayLengthMismatch
	// KindIO wraps an I/O error from the stream layer.
	KindIO
	// KindMalformedV64 classifies a malformed or overlong v64 value. No code
	// path in this module returns it: v64 decode failures surface as the
	// varint package's errors, wrapped in KindIO where the caller wraps them.
	KindMalformedV64
	// KindBadMagic is raised when a file's header magic/version is invalid.
	KindBadMagic
	// KindUnknownFieldType is raised when a field-type tag in the file
	// doesn't match any entry in the field-type catalogue.
	KindUnknownFieldType
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPoolIndex:
		return "invalid pool index"
	case KindPoolSizeMismatch:
		return "pool size mismatch"
	case KindRestrictionViolation:
		return "restriction violation"
	case KindPoolFixed:
		return "pool is fixed"
	case KindArrayLengthMismatch:
		return "constant-length array size mismatch"
	case KindIO:
		return "I/O error"
	case KindMalformedV64:
		return "malformed v64"
	case KindBadMagic:
		return "bad file header"
	case KindUnknownFieldType:
		return "unknown field type"
	default:
		return "unknown error"
	}
}

// SkillError is the generic domain error surfaced by this package, matching
// spec §7's "SkillException with subclasses" via a Kind discriminator
// instead of a subclass hierarchy.
type SkillError struct {
	Kind    Kind
	Message string
	Offset  int // byte offset in the file, -1 if not applicable.
	Cause   error
}

func (e *SkillError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("skillrt: %s at offset %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("skillrt: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *SkillError) Unwrap() error { return e.Cause }

func newErr(kind Kind, format string, args ...any) *SkillError {
	return &SkillError{Kind: kind, Message: fmt.Sprintf(format, args...), Offset: -1}
}

func newErrAt(kind Kind, offset int, format string, args ...any) *SkillError {
	return &SkillError{Kind: kind, Message: fmt.Sprintf(format, args...), Offset: offset}
}

func wrapIO(cause error, format string, args ...any) *SkillError {
	return &SkillError{
		Kind:    KindIO,
		Message: fmt.Sprintf(format, args...),
		Offset:  -1,
		Cause:   errors.WithStack(cause),
	}
}
