package logging

import (
	"fmt"
	"os"
	"sync"
)

// RotatingFile is an io.WriteCloser that appends to path and rotates it to
// path.1 .. path.N once it grows past the size limit.
type RotatingFile struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRotatingFile opens (or creates) path for appending.
func OpenRotatingFile(path string, maxSizeMB, maxBackups int) (*RotatingFile, error) {
	rf := &RotatingFile{
		path:       path,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", rf.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file %s: %w", rf.path, err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fmt.Errorf("log file %s is closed", rf.path)
	}
	if rf.maxBytes > 0 && rf.size+int64(len(p)) > rf.maxBytes && rf.size > 0 {
		if err := rf.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] log rotation failed: %v\n", err)
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate shifts path.N-1 -> path.N ... path -> path.1 and reopens path.
// Caller must hold the mutex.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	if rf.maxBackups <= 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return rf.open()
	}

	os.Remove(fmt.Sprintf("%s.%d", rf.path, rf.maxBackups))
	for i := rf.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", rf.path, i)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, fmt.Sprintf("%s.%d", rf.path, i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(rf.path, rf.path+".1"); err != nil {
		return err
	}
	return rf.open()
}

// Close closes the current file
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
