package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileSender appends every message to a local file. Enabled by LOG_EMAILS.
type FileSender struct {
	mu       sync.Mutex
	filePath string
}

// NewFileSender makes sure the directory of filePath exists.
func NewFileSender(filePath string) (*FileSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileSender{filePath: filePath}, nil
}

func (s *FileSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- %s to=%v subject=%q ---\n%s\n--- end ---\n\n",
		time.Now().Format(time.RFC3339Nano), to, subject, rawMessage)
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	return nil
}
