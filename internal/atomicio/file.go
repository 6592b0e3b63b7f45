package atomicio

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteJSON serializes v and atomically replaces target: it writes to a
// sibling target+".tmp" then renames over target. Renames on the same
// filesystem are atomic, so a reader of target never observes a partial
// write, even across a crash mid-write (the rename either happened or
// it didn't).
func WriteJSON(target string, v any) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "atomicio: mkdir for %s", target)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "atomicio: marshal %s", target)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "atomicio: write temp for %s", target)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrapf(err, "atomicio: rename temp into %s", target)
	}
	return nil
}

// WriteFileAtomic writes raw bytes to target via the same
// temp-file-plus-rename sequence as WriteJSON, for durable files that
// aren't JSON (e.g. the current-session pointer, whose sole line is a
// parent id).
func WriteFileAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "atomicio: mkdir for %s", target)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "atomicio: write temp for %s", target)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrapf(err, "atomicio: rename temp into %s", target)
	}
	return nil
}

// ReadJSON reads and decodes target into v. A missing file is reported
// via os.IsNotExist on the returned error -- callers that treat "missing"
// as "empty/default" should check that explicitly rather than Validate
// masking the distinction.
func ReadJSON(target string, v any) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "atomicio: unmarshal %s", target)
	}
	return nil
}
