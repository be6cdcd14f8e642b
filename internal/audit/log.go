package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReloadRecord is one engine reload attempt.
type ReloadRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	ReloadID    string    `json:"reload_id"`
	Source      string    `json:"source"` // "function", "watch" or "schedule"
	User        string    `json:"user,omitempty"`
	Host        string    `json:"host,omitempty"`
	Outcome     string    `json:"outcome"`
	Signatures  int       `json:"signatures,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// AuditLog appends reload records to a JSONL file.
type AuditLog struct {
	mu      sync.Mutex
	logPath string
}

// NewAuditLog writes to path. The parent directory is created on first write.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{logPath: path}
}

// Path returns the log file path.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns every record, newest first. Lines that do not decode
// are skipped.
func (a *AuditLog) LoadHistory() ([]ReloadRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.Open(a.logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ReloadRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ReloadRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// LogReload appends record, filling in the timestamp and ID when unset.
func (a *AuditLog) LogReload(record ReloadRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ReloadID == "" {
		record.ReloadID = uuid.NewString()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	// Restrict permissions to owner-only for audit log containing caller identities
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
