package orchestrator

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/protocol"
)

// iterationLogger appends one IterationLogEntry per scheduler tick to
// the JSON-lines iterations.json log (SPEC_FULL SUPPLEMENTED FEATURES
// #2). Append-only and purely additive -- never read back by the
// control plane, only by `mobius status --verbose` and crash forensics.
type iterationLogger struct {
	path string
}

func newIterationLogger(path string) *iterationLogger {
	return &iterationLogger{path: path}
}

func (l *iterationLogger) observe(frontierSize, dispatched int, outcomes map[protocol.Outcome]int) {
	entry := model.IterationLogEntry{
		Timestamp:  time.Now(),
		Frontier:   frontierSize,
		Dispatched: dispatched,
		Outcomes:   make(map[string]int, len(outcomes)),
	}
	for k, v := range outcomes {
		entry.Outcomes[string(k)] = v
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = f.Write(data)
}

// ReadIterationLog reads back the JSON-lines iterations.json log for
// `mobius status --verbose`, skipping any trailing partial line left by
// a crash mid-append. A missing file reads as an empty log, matching
// the read-missing-file-as-empty convention used throughout §6's
// durable files.
func ReadIterationLog(path string) ([]model.IterationLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []model.IterationLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry model.IterationLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
