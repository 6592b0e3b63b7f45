package streamread

import "io"

// Scanner exposes the package's line reader to callers outside the
// package: the agent pool (§4.H) reads an agent subprocess's stdout
// the same way the rest of this repo reads a JSONL session file --
// tolerant of oversized lines, never blocking forever on a partial
// final line.
type Scanner struct {
	lr   *lineReader
	last string
}

// NewScanner wraps r for line-by-line reading.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{lr: newLineReader(r)}
}

// Scan advances to the next line, returning false at EOF or error.
// Call Text() to retrieve the line and Err() to distinguish EOF from a
// read failure.
func (s *Scanner) Scan() bool {
	line, ok := s.lr.next()
	if !ok {
		return false
	}
	s.last = line
	return true
}

// Text returns the most recent line read by Scan.
func (s *Scanner) Text() string { return s.last }

// Err returns the first non-EOF I/O error encountered.
func (s *Scanner) Err() error { return s.lr.Err() }
