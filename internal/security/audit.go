package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"termshare/internal/constants"
)

// AuditRecord is one append-only line in the daily audit log. The payload is
// redacted before persistence; redaction is heuristic (see Redact), so the
// log is hygiene, not a confidentiality guarantee.
type AuditRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	SourceAddress string    `json:"source_address"`
	Kind          string    `json:"kind"`
	Payload       string    `json:"payload,omitempty"`
}

type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	enc         *json.Encoder
	logCount    int
	windowStart time.Time
}

var (
	instance *AuditLogger
	once     sync.Once
)

func GetAuditLogger() (*AuditLogger, error) {
	var err error
	once.Do(func() {
		instance, err = newAuditLogger()
	})
	return instance, err
}

func newAuditLogger() (*AuditLogger, error) {
	dir, err := auditLogDir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	filename := filepath.Join(dir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{
		file:        file,
		enc:         json.NewEncoder(file),
		windowStart: time.Now(),
	}, nil
}

func auditLogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", constants.AppName, constants.AuditDir), nil
	default:
		return filepath.Join(home, ".local", "share", constants.AppName, constants.AuditDir), nil
	}
}

// Log appends one record, redacting the payload first. Writes are budgeted
// per minute so a flooding client cannot fill the disk through the log.
func (al *AuditLogger) Log(record AuditRecord) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()
	if now.Sub(al.windowStart) > time.Minute {
		al.windowStart = now
		al.logCount = 0
	}
	if al.logCount >= constants.MaxAuditLogsPerMinute {
		return
	}
	al.logCount++

	record.Timestamp = now
	record.Payload = Redact(record.Payload)
	al.enc.Encode(record)
}

func (al *AuditLogger) LogInput(addr, payload string) {
	al.Log(AuditRecord{SourceAddress: addr, Kind: "input", Payload: payload})
}

func (al *AuditLogger) LogRejected(addr, payload string) {
	al.Log(AuditRecord{SourceAddress: addr, Kind: "rejected_message", Payload: payload})
}

func (al *AuditLogger) LogAuthFailure(addr, reason string) {
	al.Log(AuditRecord{SourceAddress: addr, Kind: "auth_failure", Payload: reason})
}

func (al *AuditLogger) LogConnectionLimit(addr, reason string) {
	al.Log(AuditRecord{SourceAddress: addr, Kind: "connection_limit", Payload: reason})
}

func (al *AuditLogger) LogRateLimit(addr, class string) {
	al.Log(AuditRecord{SourceAddress: addr, Kind: "rate_limit", Payload: class})
}

func (al *AuditLogger) Close() error {
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.file != nil {
		return al.file.Close()
	}
	return nil
}
