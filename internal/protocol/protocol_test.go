package protocol

import "testing"

func TestParseSubtaskComplete(t *testing.T) {
	stdout := "working...\n---\n" +
		"status: SUBTASK_COMPLETE\n" +
		"subtaskId: ENG-413\n" +
		"commitHash: abc123\n" +
		"filesModified:\n  - foo.go\n  - bar.go\n" +
		"verificationResults:\n  tests: pass\n" +
		"---\ndone.\n"

	r, ok := Parse(stdout)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if r.Marker != MarkerSubtaskComplete {
		t.Fatalf("marker = %q", r.Marker)
	}
	if r.SubtaskID != "ENG-413" || r.CommitHash != "abc123" {
		t.Fatalf("got %+v", r)
	}
	if len(r.FilesModified) != 2 {
		t.Fatalf("filesModified = %+v", r.FilesModified)
	}
	if r.VerificationResults["tests"] != "pass" {
		t.Fatalf("verificationResults = %+v", r.VerificationResults)
	}
	if Classify(r, ok) != OutcomeSuccess {
		t.Fatalf("classify = %q", Classify(r, ok))
	}
}

func TestParseLastFrameWins(t *testing.T) {
	stdout := "---\nstatus: NEEDS_WORK\nsubtaskId: ENG-1\n---\n" +
		"more output\n" +
		"---\nstatus: SUBTASK_COMPLETE\nsubtaskId: ENG-1\ncommitHash: deadbeef\n---\n"

	r, ok := Parse(stdout)
	if !ok || r.Marker != MarkerSubtaskComplete {
		t.Fatalf("expected last frame (SUBTASK_COMPLETE) to win, got %+v ok=%v", r, ok)
	}
}

func TestParseInconclusiveOnNoFrame(t *testing.T) {
	_, ok := Parse("just some chatter, no markers here")
	if ok {
		t.Fatal("expected inconclusive")
	}
}

func TestParseInconclusiveOnDanglingFrame(t *testing.T) {
	_, ok := Parse("---\nstatus: SUBTASK_COMPLETE\nsubtaskId: ENG-1\n")
	if ok {
		t.Fatal("expected inconclusive for unterminated frame")
	}
}

func TestParseIgnoresUnrecognizedStatus(t *testing.T) {
	_, ok := Parse("---\nstatus: SOMETHING_ELSE\n---\n")
	if ok {
		t.Fatal("expected unrecognized status to be ignored")
	}
}

func TestParseNeedsWorkMultiTask(t *testing.T) {
	stdout := "---\nstatus: NEEDS_WORK\n" +
		"failingSubtasks:\n  - ENG-1\n  - ENG-2\n" +
		"feedbackComments:\n  - fix the lint error\n  - add a test\n---\n"

	r, ok := Parse(stdout)
	if !ok || r.Marker != MarkerNeedsWork {
		t.Fatalf("got %+v ok=%v", r, ok)
	}
	if len(r.FailingSubtasks) != 2 || len(r.FeedbackComments) != 2 {
		t.Fatalf("got %+v", r)
	}
	if Classify(r, ok) != OutcomeNeedsWork {
		t.Fatalf("classify = %q", Classify(r, ok))
	}
}

func TestParseParentLevelTerminals(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want Marker
		out  Outcome
	}{
		{"---\nstatus: ALL_COMPLETE\n---\n", MarkerAllComplete, OutcomeParentDone},
		{"---\nstatus: ALL_BLOCKED\n---\n", MarkerAllBlocked, OutcomeParentBlocked},
		{"---\nstatus: NO_SUBTASKS\n---\n", MarkerNoSubtasks, OutcomeParentBlocked},
	} {
		r, ok := Parse(tc.raw)
		if !ok || r.Marker != tc.want {
			t.Fatalf("raw=%q got %+v ok=%v", tc.raw, r, ok)
		}
		if Classify(r, ok) != tc.out {
			t.Fatalf("classify(%q) = %q, want %q", tc.want, Classify(r, ok), tc.out)
		}
	}
}

func TestClassifyInconclusive(t *testing.T) {
	if Classify(Result{}, false) != OutcomeInconclusive {
		t.Fatal("expected inconclusive")
	}
}
