package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// TextEngine extracts raw text from a receipt image. Engines report their
// own availability so the pipeline can skip tiers whose prerequisite binary
// or credential is absent.
type TextEngine interface {
	Name() string
	Available() bool
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// EasyOCR runs the easyocr CLI, the primary local engine.
type EasyOCR struct {
	binPath string
}

// NewEasyOCR creates an EasyOCR engine. If binPath is empty, "easyocr" is used.
func NewEasyOCR(binPath string) *EasyOCR {
	if binPath == "" {
		binPath = "easyocr"
	}
	return &EasyOCR{binPath: binPath}
}

func (e *EasyOCR) Name() string { return "easyocr" }

func (e *EasyOCR) Available() bool {
	_, err := exec.LookPath(e.binPath)
	return err == nil
}

// ExtractText runs easyocr in plain-text detail mode and returns stdout.
func (e *EasyOCR) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binPath, "-l", "en", "--detail", "0", "--gpu", "False", "-f", imagePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: easyocr failed for %s: %s", imagePath, stderr.String())
	}
	return stdout.String(), nil
}

// Tesseract runs the tesseract CLI, the secondary local engine.
type Tesseract struct {
	binPath string
}

// NewTesseract creates a Tesseract engine. If binPath is empty, "tesseract" is used.
func NewTesseract(binPath string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	return &Tesseract{binPath: binPath}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.binPath)
	return err == nil
}

// ExtractText runs tesseract with stdout output and returns the recognized text.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, imagePath, "stdout")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: tesseract failed for %s: %s", imagePath, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) == "" {
		return "", eris.Errorf("extract: tesseract produced no text for %s", imagePath)
	}
	return stdout.String(), nil
}
