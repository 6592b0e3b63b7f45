package atomicio

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Validator is implemented by durable record types that can check their
// own field-by-field structural invariants after a JSON decode succeeds
// syntactically but before the value is trusted (§4.B, §7 DurableCorruption).
type Validator interface {
	Validate() error
}

// ReadValidated reads and decodes target into v, then calls v.Validate().
// On any failure -- missing file, malformed JSON, or a failed structural
// validation -- it returns false, logging a warning (if log is non-nil)
// for a malformed or invalid file: a missing/corrupt durable file is never a thrown error
// up the call stack, per §4.B and the DurableCorruption kind in §7.
// Callers distinguish "absent, use defaults" from "present and valid"
// via the returned bool; they never need to inspect an error.
func ReadValidated(target string, v Validator, log *logrus.Entry) bool {
	err := ReadJSON(target, v)
	switch {
	case err == nil:
		if verr := v.Validate(); verr != nil {
			warn(log, target, verr)
			return false
		}
		return true
	case os.IsNotExist(err):
		return false
	default:
		warn(log, target, err)
		return false
	}
}

func warn(log *logrus.Entry, target string, err error) {
	if log == nil {
		return
	}
	log.WithField("path", target).WithError(err).Warn("durable file invalid or corrupt, treating as absent")
}
