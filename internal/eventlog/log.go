package eventlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// reviewLogPath returns the path of a review's append-only event log. The
// per-review layout (as opposed to bd's single shared log) is what lets
// sync detect a truncated/rewritten history for one review without
// rescanning every other review's file.
func reviewLogPath(repoRoot, reviewID string) string {
	return filepath.Join(repoRoot, ".crit", "reviews", reviewID, "events.jsonl")
}

// Append writes ev as one JSON line to the review's log, creating the
// review directory and log file if this is the first event. The write is
// guarded by a blocking exclusive flock so concurrent agents appending to
// the same review never interleave partial lines.
func Append(repoRoot, reviewID string, ev Event) error {
	path := reviewLogPath(repoRoot, reviewID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("eventlog: create review dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	defer f.Close()

	release, err := lockExclusive(f)
	if err != nil {
		return fmt.Errorf("eventlog: lock %s: %w", path, err)
	}
	defer release()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", path, err)
	}
	return f.Sync()
}

// Read returns the events at 1-based line fromLine onward (fromLine <= 1
// reads the whole log). Blank or whitespace-only lines are tolerated and
// skipped without incrementing the returned event set, but still count
// toward line numbers so CorruptLog.Line matches the file's real line.
// Reading stops at the first malformed line; events already returned
// remain valid for the caller to apply.
func Read(repoRoot, reviewID string, fromLine int) ([]Event, error) {
	path := reviewLogPath(repoRoot, reviewID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	defer f.Close()

	release, err := lockShared(f)
	if err != nil {
		return nil, fmt.Errorf("eventlog: lock %s: %w", path, err)
	}
	defer release()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < fromLine {
			continue
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return events, &CorruptLog{Line: lineNo, Detail: err.Error()}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("eventlog: scan %s: %w", path, err)
	}
	return events, nil
}

// TotalLines returns the number of lines (including blank ones) currently
// in the review's log. The sync engine compares this against a stored
// cursor to detect truncation/rewrite before trusting a prefix hash.
func TotalLines(repoRoot, reviewID string) (int, error) {
	path := reviewLogPath(repoRoot, reviewID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	defer f.Close()

	release, err := lockShared(f)
	if err != nil {
		return 0, fmt.Errorf("eventlog: lock %s: %w", path, err)
	}
	defer release()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("eventlog: scan %s: %w", path, err)
	}
	return n, nil
}

// PrefixHash returns the hex-encoded SHA-256 of the raw bytes of the
// first n lines (including their trailing newlines) of the review's log.
// The sync engine stores this alongside its cursor: if a later sync sees
// the same cursor position but a different prefix hash, the log was
// rewritten underneath it (e.g. by a manual edit or an aborted migration)
// rather than merely appended to, and the caller must treat it as a
// regression rather than an incremental continuation.
func PrefixHash(repoRoot, reviewID string, n int) (string, error) {
	path := reviewLogPath(repoRoot, reviewID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	defer f.Close()

	release, err := lockShared(f)
	if err != nil {
		return "", fmt.Errorf("eventlog: lock %s: %w", path, err)
	}
	defer release()

	h := sha256.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for i := 0; i < n && scanner.Scan(); i++ {
		h.Write(scanner.Bytes())
		h.Write([]byte{'\n'})
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("eventlog: scan %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
