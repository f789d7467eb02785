package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimingGap marks audio and cue tracks that cover disjoint time ranges.
	ErrTimingGap = errors.New("timing gap")
	// ErrLayoutOverflow marks text that cannot fit the safe zone at the requested size.
	ErrLayoutOverflow = errors.New("layout overflow")
	// ErrEffectConfig marks effect extents that exceed the canvas padding.
	ErrEffectConfig = errors.New("effect configuration error")
	// ErrFrameTimeout marks a single frame render exceeding its deadline.
	ErrFrameTimeout = errors.New("frame render timeout")
	// ErrEncoding marks encoder failures.
	ErrEncoding = errors.New("encoding error")
	// ErrCancelled marks job cancellation requested by the caller.
	ErrCancelled = errors.New("cancelled")
	// ErrValidation marks invalid inputs caught before rendering starts.
	ErrValidation = errors.New("validation error")
	// ErrExternalTool marks failures in external binaries such as ffmpeg.
	ErrExternalTool = errors.New("external tool error")
)

// ErrorKind is the stable failure classification persisted with a job.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindTimingGap      ErrorKind = "timing_gap"
	KindLayoutOverflow ErrorKind = "layout_overflow"
	KindEffectConfig   ErrorKind = "effect_config"
	KindFrameTimeout   ErrorKind = "frame_timeout"
	KindEncoding       ErrorKind = "encoding"
	KindCancelled      ErrorKind = "cancelled"
	KindValidation     ErrorKind = "validation"
	KindExternalTool   ErrorKind = "external_tool"
	KindInternal       ErrorKind = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error chain to the ErrorKind the job store persists.
// Context cancellation is classified as Cancelled, not as an internal error.
func FailureKind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimingGap):
		return KindTimingGap
	case errors.Is(err, ErrLayoutOverflow):
		return KindLayoutOverflow
	case errors.Is(err, ErrEffectConfig):
		return KindEffectConfig
	case errors.Is(err, ErrFrameTimeout):
		return KindFrameTimeout
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// Fatal reports whether the error must abort the job with no partial output.
func Fatal(err error) bool {
	switch FailureKind(err) {
	case KindTimingGap, KindEffectConfig, KindValidation:
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
