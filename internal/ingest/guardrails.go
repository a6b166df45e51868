package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guardrails decides which local files may be attached to a message
type Guardrails struct {
	MaxFileSize        int64
	AllowedExtensions  map[string]bool
	BlockedExtensions  map[string]bool
	SensitiveFilenames []string
}

// NewGuardrails returns the default limits: 1MB of text or source code
func NewGuardrails() *Guardrails {
	allowed := map[string]bool{".txt": true, ".md": true, ".json": true, ".csv": true, ".log": true}
	for ext := range codeLanguages {
		allowed[ext] = true
	}
	return &Guardrails{
		MaxFileSize:       1024 * 1024,
		AllowedExtensions: allowed,
		BlockedExtensions: map[string]bool{
			".exe": true, ".dll": true, ".so": true, ".dylib": true,
			".zip": true, ".tar": true, ".gz": true, ".bin": true,
		},
		SensitiveFilenames: []string{".env", "id_rsa", "id_ed25519", "credentials", ".pem", ".key", "config.json"},
	}
}

// IsAllowedExtension reports whether ext (with the dot) may be attached
func (g *Guardrails) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	return g.AllowedExtensions[ext] && !g.BlockedExtensions[ext]
}

// CheckFile rejects files by name, extension or size
func (g *Guardrails) CheckFile(path string, size int64) error {
	name := strings.ToLower(filepath.Base(path))
	for _, s := range g.SensitiveFilenames {
		if name == s || strings.HasSuffix(name, s) {
			return fmt.Errorf("%s looks like a credentials file", filepath.Base(path))
		}
	}

	ext := filepath.Ext(name)
	if !g.IsAllowedExtension(ext) {
		return fmt.Errorf("file extension %q is not allowed", ext)
	}
	if size > g.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit %d", size, g.MaxFileSize)
	}
	return nil
}
