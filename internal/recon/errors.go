package recon

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies the fatal conditions the reconstruction core can surface.
type Kind int

const (
	// KindUnknown covers wrapped errors with no specific classification.
	KindUnknown Kind = iota
	// KindNoCheckerboard means no usable checkerboard detection was found in
	// any sampled calibration frame.
	KindNoCheckerboard
	// KindUnsupportedCamera means no intrinsics profile is registered for
	// the camera's device model.
	KindUnsupportedCamera
	// KindUnknownPlacement means the session declares a checkerboard
	// placement preset the rotation table does not recognize.
	KindUnknownPlacement
	// KindTooFewViews means fewer than two cameras qualified where
	// triangulation was required to proceed.
	KindTooFewViews
	// KindInsufficientFrames means fewer than ten fully valid 3D frames
	// survived triangulation.
	KindInsufficientFrames
	// KindNoScaledModel means a dependent step required a scaled model that
	// does not exist.
	KindNoScaledModel
	// KindConfiguration covers invalid session metadata or pipeline options.
	KindConfiguration
	// KindExternal covers failures of external collaborators (ffprobe,
	// video decode, detector output).
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindNoCheckerboard:
		return "no_checkerboard"
	case KindUnsupportedCamera:
		return "unsupported_camera"
	case KindUnknownPlacement:
		return "unknown_placement"
	case KindTooFewViews:
		return "too_few_views"
	case KindInsufficientFrames:
		return "insufficient_frames"
	case KindNoScaledModel:
		return "no_scaled_model"
	case KindConfiguration:
		return "configuration"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the two-part error payload surfaced to the orchestration layer:
// a short user-facing message and a longer developer message, plus the
// classification kind and the wrapped cause.
type Error struct {
	Kind Kind
	User string
	Dev  string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Dev != "" {
		parts = append(parts, e.Dev)
	} else if e.User != "" {
		parts = append(parts, e.User)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, ": "))
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the short message intended for display, falling back
// to the developer message when none was set.
func (e *Error) UserMessage() string {
	if e.User != "" {
		return e.User
	}
	return e.Dev
}

// DevMessage returns the diagnostic message including the wrapped cause.
func (e *Error) DevMessage() string {
	msg := e.Dev
	if msg == "" {
		msg = e.User
	}
	if e.Err != nil {
		if msg != "" {
			return msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return msg
}

// New builds a classified error with identical user and developer messages.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, User: message, Dev: message}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, User: msg, Dev: msg}
}

// Wrap attaches a classification and user message to an underlying error.
// The developer message keeps the full diagnostic detail.
func Wrap(kind Kind, user, dev string, err error) *Error {
	return &Error{Kind: kind, User: user, Dev: dev, Err: err}
}

// KindOf reports the classification of err, or KindUnknown when err is not
// a recon error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Messages splits err into its (user, developer) payload. Unclassified
// errors report the same text for both.
func Messages(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.UserMessage(), re.DevMessage()
	}
	return err.Error(), err.Error()
}
