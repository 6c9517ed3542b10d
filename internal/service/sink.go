package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Artifact is one rendered report.
type Artifact struct {
	Format string // model.FormatHTML | model.FormatBOM
	Name   string // file name, e.g. network_health_report_20261019_143000.html
	Data   []byte
}

// Sink publishes rendered reports.
type Sink interface {
	Publish(ctx context.Context, a Artifact) error
}

type SinkCloser interface {
	Sink
	Close() error
}

// WriteSink writes every artifact to w, os.Stdout by default.
type WriteSink struct {
	w io.Writer
}

func NewWriteSink(w io.Writer) WriteSink {
	return WriteSink{w: w}
}

func (s WriteSink) Publish(_ context.Context, a Artifact) error {
	w := s.w
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(a.Data)
	return err
}

// DirSink stores artifacts as files inside a single directory.
type DirSink struct {
	dir  string
	root *os.Root
}

func NewDirSink(path string) (*DirSink, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &DirSink{dir: path, root: root}, nil
}

func (s *DirSink) Publish(ctx context.Context, a Artifact) error {
	if s.root == nil {
		return errors.New("root already closed")
	}

	f, err := s.root.Create(a.Name)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	_, err = f.Write(a.Data)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving report: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	path := filepath.Join(s.dir, a.Name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	slog.InfoContext(ctx, "report saved", "format", a.Format, "path", path)
	return nil
}

func (s *DirSink) Close() error {
	if s.root == nil {
		return errors.New("sink already closed")
	}
	err := s.root.Close()
	s.root = nil
	return err
}
