package logging

import (
	"bytes"
	"io"
)

// levelRouter sends every line to the file and only WARN/ERROR lines to the
// console, keeping the terminal quiet while the file holds full detail.
type levelRouter struct {
	console io.Writer
	file    io.Writer
}

func (r *levelRouter) Write(p []byte) (int, error) {
	n, err := r.file.Write(p)
	if isLoud(p) {
		if _, cerr := r.console.Write(p); err == nil {
			err = cerr
		}
	}
	return n, err
}

// isLoud inspects the level token that follows the "[timestamp] " prefix
func isLoud(p []byte) bool {
	i := bytes.IndexByte(p, ']')
	if i < 0 || i+2 > len(p) {
		return true
	}
	rest := p[i+2:]
	return bytes.HasPrefix(rest, []byte("WARN")) || bytes.HasPrefix(rest, []byte("ERROR"))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewOutput builds the writer behind the application logger. With an empty
// file path everything goes to console; otherwise the file gets every line
// and console only warnings and errors.
func NewOutput(console io.Writer, file string, maxSizeMB, maxBackups int) (io.Writer, io.Closer, error) {
	if file == "" {
		return console, nopCloser{}, nil
	}
	rf, err := OpenRotatingFile(file, maxSizeMB, maxBackups)
	if err != nil {
		return console, nopCloser{}, err
	}
	return &levelRouter{console: console, file: rf}, rf, nil
}
