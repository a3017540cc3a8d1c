package attrib

import (
	"errors"
	"fmt"
	"log"
	"time"

	"seisattrib/internal/ratelimit"
)

var (
	ErrUnresolvedInputs    = errors.New("attrib: descriptor inputs cannot be resolved without a descriptor set")
	ErrUnknownAttribute    = errors.New("attrib: no provider registered for attribute type")
	ErrInitFailed          = errors.New("attrib: provider initialisation failed")
	ErrMissingInput        = errors.New("attrib: required input missing")
	ErrNoTraceSource       = errors.New("attrib: graph has no trace source")
	ErrPositionUnavailable = errors.New("attrib: position not available")
	ErrUnsupportedZRatio   = errors.New("attrib: survey z step is not an integer multiple of the reference step")
	ErrNoZInterval         = errors.New("attrib: no compute z interval registered")
)

// ProgrammingError is the panic value raised when engine invariants are
// violated by the caller, such as disabling an output nobody enabled.
type ProgrammingError struct {
	Msg string
}

func (e ProgrammingError) Error() string {
	return "attrib: programming error: " + e.Msg
}

var progErrors = ratelimit.NewCounter(time.Second)

// progError logs through the rate-limited programming-error channel and panics.
func progError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logProgError(msg)
	panic(ProgrammingError{Msg: msg})
}

// paramError reports a parameter problem found during initialisation through
// the programming-error channel and returns it as an init failure.
func paramError(p *Provider, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	logProgError(fmt.Sprintf("%s: %s", p.desc, msg))
	return fmt.Errorf("%w: %s: %s", ErrInitFailed, p.desc, msg)
}

func logProgError(msg string) {
	if total, ok := progErrors.Inc(); ok {
		log.Printf("Attrib: programming error: %s (total=%d suppressed=%d)", msg, total, progErrors.Suppressed())
	}
}
