// Package protocol parses the structured status markers an agent
// subprocess emits on stdout (§4.F). An agent communicates its final
// outcome as a YAML-delimited frame bounded by "---" lines, containing
// a recognized "status:" key; the parser extracts the *last* complete
// such frame and classifies it into a tagged Result. Output with no
// recognized frame is Inconclusive.
package protocol

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Marker is one of the terminal status markers an agent can emit.
type Marker string

const (
	MarkerSubtaskComplete    Marker = "SUBTASK_COMPLETE"
	MarkerVerificationFailed Marker = "VERIFICATION_FAILED"
	MarkerNeedsWork          Marker = "NEEDS_WORK"
	MarkerAllComplete        Marker = "ALL_COMPLETE"
	MarkerAllBlocked         Marker = "ALL_BLOCKED"
	MarkerNoSubtasks         Marker = "NO_SUBTASKS"
)

func (m Marker) recognized() bool {
	switch m {
	case MarkerSubtaskComplete, MarkerVerificationFailed, MarkerNeedsWork,
		MarkerAllComplete, MarkerAllBlocked, MarkerNoSubtasks:
		return true
	default:
		return false
	}
}

// frame is the raw YAML shape of a status marker. Every field the
// table in §4.F names for any marker is present here; unused fields
// for a given marker are simply zero after decode.
type frame struct {
	Status string `yaml:"status"`

	SubtaskID           string            `yaml:"subtaskId"`
	CommitHash          string            `yaml:"commitHash"`
	FilesModified       []string          `yaml:"filesModified"`
	VerificationResults map[string]string `yaml:"verificationResults"`

	ErrorType    string `yaml:"errorType"`
	ErrorSummary string `yaml:"errorSummary"`

	Issues           []string `yaml:"issues"`
	FailingSubtasks  []string `yaml:"failingSubtasks"`
	FeedbackComments []string `yaml:"feedbackComments"`
}

// Result is the classified, tagged outcome of one agent's stdout.
type Result struct {
	Marker Marker

	SubtaskID           string
	CommitHash          string
	FilesModified       []string
	VerificationResults map[string]string

	ErrorType    string
	ErrorSummary string

	Issues           []string
	FailingSubtasks  []string
	FeedbackComments []string
}

// frameDelim marks the start/end of a YAML status frame in stdout.
const frameDelim = "---"

// Parse scans stdout for YAML-delimited frames and returns the last one
// whose status field names a recognized marker. ok is false when no
// recognized frame was found -- classified as Inconclusive by callers.
func Parse(stdout string) (result Result, ok bool) {
	for _, raw := range extractFrames(stdout) {
		var f frame
		if err := yaml.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		m := Marker(strings.TrimSpace(f.Status))
		if !m.recognized() {
			continue
		}
		result = Result{
			Marker:              m,
			SubtaskID:           f.SubtaskID,
			CommitHash:          f.CommitHash,
			FilesModified:       f.FilesModified,
			VerificationResults: f.VerificationResults,
			ErrorType:           f.ErrorType,
			ErrorSummary:        f.ErrorSummary,
			Issues:              f.Issues,
			FailingSubtasks:     f.FailingSubtasks,
			FeedbackComments:    f.FeedbackComments,
		}
		ok = true // keep scanning -- a later frame in stdout wins
	}
	return result, ok
}

// extractFrames returns the body of every "---"-delimited block found
// in stdout, in order of appearance. A frame must be a complete pair of
// delimiter lines; a dangling opening delimiter at EOF (an agent still
// writing) is not returned.
func extractFrames(stdout string) []string {
	lines := strings.Split(stdout, "\n")
	var frames []string
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != frameDelim {
			continue
		}
		if start == -1 {
			start = i
			continue
		}
		frames = append(frames, strings.Join(lines[start+1:i], "\n"))
		start = -1
	}
	return frames
}

// Outcome classifies a Result (or its absence, for a timeout/error
// path) per §4.H's outcome table.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeNeedsWork    Outcome = "needs_work"
	OutcomeParentDone   Outcome = "parent_done"
	OutcomeParentBlocked Outcome = "parent_blocked"
	OutcomeInconclusive Outcome = "inconclusive"
)

// Classify maps a parsed Result to its scheduler-level outcome.
func Classify(r Result, ok bool) Outcome {
	if !ok {
		return OutcomeInconclusive
	}
	switch r.Marker {
	case MarkerSubtaskComplete:
		return OutcomeSuccess
	case MarkerVerificationFailed:
		return OutcomeFailure
	case MarkerNeedsWork:
		return OutcomeNeedsWork
	case MarkerAllComplete:
		return OutcomeParentDone
	case MarkerAllBlocked, MarkerNoSubtasks:
		return OutcomeParentBlocked
	default:
		return OutcomeInconclusive
	}
}
