// Package pdf normalises PDF documents by shelling out to the poppler
// pdftotext utility.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/normalisers"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found")

// CommandRunner abstracts command execution so tests can stub the
// external tool.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %v: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Normaliser extracts text from PDFs via pdftotext.
type Normaliser struct {
	runner CommandRunner
}

var _ driven.Normaliser = (*Normaliser)(nil)

// New creates a PDF normaliser using the real pdftotext binary.
func New() *Normaliser {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(r CommandRunner) *Normaliser {
	return &Normaliser{runner: r}
}

// SupportedExtensions lists the handled extensions.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{"pdf"}
}

// Priority returns the routing priority.
func (n *Normaliser) Priority() int {
	return 10
}

// CheckAvailable reports whether pdftotext is on the PATH.
func (n *Normaliser) CheckAvailable() error {
	if _, err := n.runner.LookPath("pdftotext"); err != nil {
		return fmt.Errorf("%w: %s", ErrPDFToolNotFound, InstallInstructions())
	}
	return nil
}

// InstallInstructions returns a hint for installing the tool.
func InstallInstructions() string {
	return "install poppler-utils (apt install poppler-utils / brew install poppler)"
}

// Normalise writes the PDF to a temp file, extracts its text with
// pdftotext and sanitises the result. PDFs with no extractable text,
// such as pure image scans, fail with domain.ErrEmptyContent.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawObject) (*domain.NormalisedDocument, error) {
	if err := n.CheckAvailable(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "specrag-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(src, raw.Content, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp pdf: %w", err)
	}

	out, err := n.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", src, "-")
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}

	content := normalisers.Sanitise(string(out))
	if content == "" {
		return nil, fmt.Errorf("%s has no extractable text (image-only pdf, OCR is not supported): %w",
			raw.StoragePath, domain.ErrEmptyContent)
	}

	return &domain.NormalisedDocument{
		Title:   extractTitle(content, raw.StoragePath),
		Content: content,
	}, nil
}

func extractTitle(content, path string) string {
	lines := bytes.SplitN([]byte(content), []byte("\n"), 5)
	for _, l := range lines {
		line := string(bytes.TrimSpace(l))
		if line == "" {
			continue
		}
		if len(line) > 100 {
			break
		}
		return line
	}

	base := filepath.Base(path)
	return base
}
