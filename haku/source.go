package haku

import "fmt"

// ---------------------------------------------------------------------------
// Source code and spans
// ---------------------------------------------------------------------------

// SourceCode is brush source text whose length has been validated against a
// limit, so later stages can index it with u32 spans without checking.
type SourceCode string

// ErrSourceTooLong is returned when brush source exceeds the configured cap.
var ErrSourceTooLong = fmt.Errorf("source code is too long")

// NewSourceCode validates that s fits within maxLen bytes.
func NewSourceCode(s string, maxLen int) (SourceCode, error) {
	if len(s) > maxLen {
		return "", ErrSourceTooLong
	}
	return SourceCode(s), nil
}

// Span is a half-open byte range within a SourceCode.
type Span struct {
	Start uint32
	End   uint32
}

// NewSpan creates a span from start and end offsets.
func NewSpan(start, end uint32) Span {
	return Span{Start: start, End: end}
}

// Slice returns the source text the span covers.
func (s Span) Slice(source SourceCode) string {
	return string(source[s.Start:s.End])
}

// Join returns the smallest span covering both s and other. A zero span is
// treated as empty and does not widen the result.
func (s Span) Join(other Span) Span {
	if s == (Span{}) {
		return other
	}
	if other == (Span{}) {
		return s
	}
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// Diagnostic is a user-facing error message attached to a source span.
// Front end stages accumulate diagnostics instead of aborting, so a single
// pass reports everything wrong with a brush.
type Diagnostic struct {
	Span    Span
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d..%d: %s", d.Span.Start, d.Span.End, d.Message)
}
