package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of walking an audit log's hash chain.
// TailHash is the hash a next entry would have to carry as prev_hash.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	TailHash  string `json:"tail_hash,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify checks the hash chain of the JSONL audit log at path and reports
// the first broken link.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()
	return VerifyReader(f)
}

// VerifyReader checks a hash chain read from r. An empty stream is a
// valid chain whose tail is the genesis hash.
func VerifyReader(r io.Reader) VerifyResult {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tail := GenesisHash
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()

		var link struct {
			PrevHash string `json:"prev_hash"`
		}
		if err := json.Unmarshal(line, &link); err != nil {
			return VerifyResult{Lines: n - 1, Error: fmt.Sprintf("parse error: %v", err), ErrorLine: n}
		}
		if link.PrevHash != tail {
			msg := fmt.Sprintf("hash mismatch: expected %s, got %s", tail, link.PrevHash)
			if n == 1 {
				msg = fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", link.PrevHash)
			}
			return VerifyResult{Lines: n - 1, Error: msg, ErrorLine: n}
		}
		tail = HashLine(line)
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Lines: n, Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: n, TailHash: tail}
}
