// Package ingest turns local files into message attachments.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"askai/internal/domain"
	"askai/internal/logging"

	"github.com/google/uuid"
)

// codeLanguages maps source extensions to the language tag sent with code
// attachments
var codeLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".rb":   "ruby",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".html": "html",
	".css":  "css",
}

// Loader reads files from disk into attachments
type Loader struct {
	guardrails *Guardrails
	secrets    *SecretDetector
	logger     *logging.Logger
}

func NewLoader(logger *logging.Logger) *Loader {
	return &Loader{
		guardrails: NewGuardrails(),
		secrets:    NewSecretDetector(),
		logger:     logger,
	}
}

// LoadFile reads path into a file or code attachment. Binary files, files
// over the size limit and files containing credentials are refused with
// ErrInvalidInput.
func (l *Loader) LoadFile(path string) (domain.Attachment, error) {
	logger := l.logger.WithContext("file_path", path)

	f, err := os.Open(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return domain.Attachment{}, domain.Reason(domain.ErrInvalidInput, path+" is a directory")
	}
	if err := l.guardrails.CheckFile(path, info.Size()); err != nil {
		logger.WithContext("error", err.Error()).Warn("attachment rejected")
		return domain.Attachment{}, domain.Reason(domain.ErrInvalidInput, err.Error())
	}

	// Read one byte past the limit in case the file grew since Stat
	data, err := io.ReadAll(io.LimitReader(f, l.guardrails.MaxFileSize+1))
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	if int64(len(data)) > l.guardrails.MaxFileSize {
		return domain.Attachment{}, domain.Reason(domain.ErrInvalidInput, "file grew past the size limit")
	}
	if !utf8.Valid(data) {
		return domain.Attachment{}, domain.Reason(domain.ErrInvalidInput, filepath.Base(path)+" is not a text file")
	}

	text := string(data)
	if found := l.secrets.Detect(text); len(found) > 0 {
		logger.WithContext("kinds", strings.Join(found, ",")).Warn("attachment contains secrets")
		return domain.Attachment{}, domain.Reason(domain.ErrInvalidInput,
			fmt.Sprintf("%s appears to contain secrets (%s)", filepath.Base(path), strings.Join(found, ", ")))
	}

	att := domain.Attachment{
		ID:      uuid.NewString(),
		Type:    domain.AttachmentFile,
		Name:    filepath.Base(path),
		Content: text,
	}
	if lang, ok := codeLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		att.Type = domain.AttachmentCode
		att.Language = lang
	}
	logger.WithFields(map[string]interface{}{
		"type": string(att.Type),
		"size": len(data),
	}).Debug("attachment loaded")
	return att, nil
}
