package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnitModified is returned when an installed unit no longer matches
// the hash recorded when it was written.
var ErrUnitModified = errors.New("unit file modified since installation")

// HashPath is where the install-time hash of unitPath is kept.
func HashPath(unitPath string) string {
	return unitPath + ".sha256"
}

// WriteUnit writes content to unitPath and records its hash alongside.
func WriteUnit(unitPath, content string) error {
	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	h := sha256.Sum256([]byte(content))
	if err := os.WriteFile(HashPath(unitPath), []byte(hex.EncodeToString(h[:])+"\n"), 0600); err != nil {
		return fmt.Errorf("write unit hash: %w", err)
	}
	return nil
}

// CheckUnit compares the unit file hash against the recorded one.
func CheckUnit(unitPath string) error {
	stored, err := os.ReadFile(HashPath(unitPath))
	if err != nil {
		return fmt.Errorf("read unit hash: %w", err)
	}
	expected := strings.TrimSpace(string(stored))
	if len(expected) != 64 {
		return fmt.Errorf("invalid unit hash in %s", HashPath(unitPath))
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		return fmt.Errorf("read unit file: %w", err)
	}
	h := sha256.Sum256(data)
	actual := hex.EncodeToString(h[:])
	if actual != expected {
		return fmt.Errorf("%w: %s (expected %s, got %s)", ErrUnitModified, unitPath, expected[:16], actual[:16])
	}
	return nil
}
