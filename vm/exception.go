package vm

import "fmt"

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// ExceptionKind classifies what went wrong during a brush run. The kind is
// machine-readable for callers that want to distinguish resource exhaustion
// from type errors; the message is what users see.
type ExceptionKind uint8

const (
	// OutOfFuel: the brush executed more instructions than its fuel allows.
	OutOfFuel ExceptionKind = iota
	// OutOfMemory: the brush allocated more than its memory budget allows.
	OutOfMemory
	// StackOverflow: the operand stack overflowed.
	StackOverflow
	// TooMuchRecursion: the call stack overflowed.
	TooMuchRecursion
	// TypeMismatch: an operation received a value of the wrong type.
	TypeMismatch
	// ArityMismatch: a function was called with the wrong number of
	// arguments.
	ArityMismatch
	// DivisionByZero: the brush divided by zero.
	DivisionByZero
	// Panic: the VM detected an internal inconsistency, usually caused by
	// corrupt bytecode. Never the brush's fault.
	Panic
)

var exceptionKindNames = [...]string{
	OutOfFuel:        "OutOfFuel",
	OutOfMemory:      "OutOfMemory",
	StackOverflow:    "StackOverflow",
	TooMuchRecursion: "TooMuchRecursion",
	TypeMismatch:     "TypeMismatch",
	ArityMismatch:    "ArityMismatch",
	DivisionByZero:   "DivisionByZero",
	Panic:            "Panic",
}

func (k ExceptionKind) String() string {
	if int(k) < len(exceptionKindNames) {
		return exceptionKindNames[k]
	}
	return fmt.Sprintf("ExceptionKind(%d)", uint8(k))
}

// Exception is raised when a brush run fails. It unwinds the whole run; the
// VM is restored from its image afterwards, so a failed run cannot poison
// the next one.
type Exception struct {
	Kind    ExceptionKind
	Message string
}

func (e *Exception) Error() string { return e.Message }

func newException(kind ExceptionKind, message string) *Exception {
	return &Exception{Kind: kind, Message: message}
}

func newExceptionf(kind ExceptionKind, format string, args ...any) *Exception {
	return &Exception{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Canonical resource exhaustion exceptions.
var (
	errOutOfFuel     = &Exception{OutOfFuel, "code ran for too long"}
	errOutOfMemory   = &Exception{OutOfMemory, "out of heap memory"}
	errStackOverflow = &Exception{StackOverflow,
		"too many temporary values (local variables and expression operands)"}
	errTooMuchRecursion = &Exception{TooMuchRecursion, "too much recursion"}
	errDivisionByZero   = &Exception{DivisionByZero, "division by zero"}
)
