// Package subprocess extracts features by running a local script:
// `{python} {script} {image_path}` printing {"features":[...]} or
// {"error":"..."} on stdout.
package subprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain"
)

// waitDelay bounds how long Wait lingers on inherited pipes after the process is killed.
const waitDelay = 2 * time.Second

// Config holds the runner settings.
type Config struct {
	Python string
	Script string
	// Dir receives the temporary upload files; empty means os.TempDir().
	Dir    string
	Model  string
	Logger *zap.Logger
}

// Extractor runs the extraction script once per image.
type Extractor struct {
	python string
	script string
	dir    string
	model  string
	logger *zap.Logger
}

// New creates a subprocess extractor.
func New(cfg Config) *Extractor {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	return &Extractor{python: python, script: cfg.Script, dir: cfg.Dir, model: cfg.Model, logger: log}
}

type scriptOutput struct {
	Features []float32 `json:"features"`
	Error    string    `json:"error"`
}

// Extract writes the image to a temp file, runs the script and parses stdout.
// The temp file is removed on every path.
func (e *Extractor) Extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	path, err := e.writeTemp(img)
	if err != nil {
		return domain.Features{}, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			e.logger.Warn("Failed to remove temp upload", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.python, e.script, path) //nolint:gosec // configured binary
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Features{}, fmt.Errorf("run extractor: %w", ctxErr)
	}

	var out scriptOutput
	decodeErr := json.Unmarshal(lastLine(stdout.Bytes()), &out)

	if runErr != nil {
		if decodeErr == nil && out.Error != "" {
			return domain.Features{}, fmt.Errorf("extractor script: %s", out.Error)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return domain.Features{}, fmt.Errorf("extractor script failed: %s", msg)
	}
	if decodeErr != nil {
		return domain.Features{}, fmt.Errorf("parse extractor output: %w", decodeErr)
	}
	if out.Error != "" {
		return domain.Features{}, fmt.Errorf("extractor script: %s", out.Error)
	}

	return domain.Features{Vector: out.Features, Model: e.model}, nil
}

// HealthCheck verifies that the interpreter and script are present.
func (e *Extractor) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(e.python); err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	if _, err := os.Stat(e.script); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func (e *Extractor) writeTemp(img domain.Image) (string, error) {
	f, err := os.CreateTemp(e.dir, "upload-*"+filepath.Ext(filepath.Base(img.Filename)))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// lastLine returns the final non-empty stdout line; model libraries tend to
// print banners before the JSON payload.
func lastLine(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return bytes.TrimSpace(b[i+1:])
	}
	return b
}
