package ingest

import (
	"regexp"
	"sort"
)

// SecretDetector scans text for credentials that must not leave the machine
type SecretDetector struct {
	patterns map[string]*regexp.Regexp
}

func NewSecretDetector() *SecretDetector {
	return &SecretDetector{
		patterns: map[string]*regexp.Regexp{
			"google_api_key": regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`),
			"api_key":        regexp.MustCompile(`\b(sk-[a-zA-Z0-9]{32,}|ghp_[a-zA-Z0-9]{36}|xox[baprs]-[a-zA-Z0-9-]+)\b`),
			"private_key":    regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`),
			"aws_access_key": regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		},
	}
}

// Detect returns the kinds of secret found in text, sorted
func (d *SecretDetector) Detect(text string) []string {
	var found []string
	for kind, pattern := range d.patterns {
		if pattern.MatchString(text) {
			found = append(found, kind)
		}
	}
	sort.Strings(found)
	return found
}
