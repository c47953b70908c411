package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// GenesisHash is the prev_hash carried by the first entry of every log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ErrBrokenChain is returned when an existing log fails verification.
var ErrBrokenChain = errors.New("audit log hash chain is broken")

// FileLog appends entries to a JSONL file. Every line carries the hash of
// the line before it, so any edit, insertion or deletion is detectable
// by Verify.
type FileLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	tail   string
	logger *slog.Logger
}

// Open opens or creates the log at path. An existing log is verified
// first and its tail hash becomes the next prev_hash; a log whose chain
// is already broken is refused rather than extended.
func Open(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	res := VerifyReader(file)
	if !res.Valid {
		file.Close()
		return nil, fmt.Errorf("%w: %s line %d: %s", ErrBrokenChain, path, res.ErrorLine, res.Error)
	}

	return &FileLog{
		path:   path,
		file:   file,
		tail:   res.TailHash,
		logger: slog.Default(),
	}, nil
}

// Path returns the file the log writes to.
func (l *FileLog) Path() string {
	return l.path
}

// SetLogger replaces the logger used by Observe. Nil is ignored.
func (l *FileLog) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	l.mu.Lock()
	l.logger = logger
	l.mu.Unlock()
}

// Record chains entry onto the tail, writes it as one line and syncs.
func (l *FileLog) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.PrevHash = l.tail
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.tail = HashLine(line)
	return nil
}

// Observe lets a FileLog sit behind the gate as an observer. Failures are
// logged because the decision has already been made.
func (l *FileLog) Observe(entry Entry) {
	if err := l.Record(entry); err != nil {
		l.logger.Error("audit file write failed", "path", l.path, "seq", entry.Seq, "err", err)
	}
}

// Close closes the underlying file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of line.
func HashLine(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}
