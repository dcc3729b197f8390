package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies why an action was refused, so the API layer can map
// refusals to status codes without string matching.
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindMachineBusy       Kind = "machine_busy"
	KindMachineDown       Kind = "machine_down"
	KindAlreadyBroken     Kind = "already_broken"
	KindNotBroken         Kind = "not_broken"
	KindDrawingHeld       Kind = "drawing_held"
	KindQuantityExceeded  Kind = "quantity_exceeded"
	KindNotFound          Kind = "not_found"
	KindSessionInactive   Kind = "session_inactive"
	KindBadRequest        Kind = "bad_request"
)

// Rejection is a refused action. It is an expected outcome, not a fault:
// callers branch on Kind and relay Msg to the operator.
type Rejection struct {
	Kind Kind
	Msg  string
}

func (r *Rejection) Error() string { return fmt.Sprintf("%s: %s", r.Kind, r.Msg) }

func Reject(kind Kind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the rejection kind from an error chain, or "" for
// faults that are not rejections.
func KindOf(err error) Kind {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind
	}
	return ""
}
