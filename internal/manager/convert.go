package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mlxd/internal/common/fsutil"
	"mlxd/pkg/types"
)

// Quantization levels accepted by the conversion glue.
const (
	Quant4Bit = "4-bit"
	Quant8Bit = "8-bit"
	QuantBF16 = "bf16"
)

const stderrTailBytes = 4096

// ValidateModelID checks that id is a HuggingFace identifier in
// "org/name" form.
func ValidateModelID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidRequest("model is required")
	}
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalidRequest("model must be in 'org/name' form, e.g. LiquidAI/LFM2-1.2B-RAG")
	}
	return nil
}

// quantPlan maps a quantization level to converter flags and the suffix
// used for default output names.
func quantPlan(q string) (args []string, suffix string, err error) {
	switch q {
	case Quant4Bit:
		return []string{"-q", "--q-bits", "4"}, "-q4", nil
	case Quant8Bit:
		return []string{"-q", "--q-bits", "8"}, "-q8", nil
	case QuantBF16:
		return nil, "-bf16", nil
	default:
		return nil, "", ErrInvalidRequest(fmt.Sprintf("invalid quantization %q: choose 4-bit, 8-bit or bf16", q))
	}
}

// Convert runs the external converter for req and reports the produced
// artifact. Exactly one of (success response, error) is returned: on any
// failure a partial output directory is removed first.
func (m *Manager) Convert(ctx context.Context, req types.ConvertRequest) (types.ConvertResponse, error) {
	var resp types.ConvertResponse

	model := strings.TrimSpace(req.Model)
	if err := ValidateModelID(model); err != nil {
		return resp, err
	}
	quant := req.Quantization
	if quant == "" {
		quant = Quant4Bit
	}
	quantArgs, suffix, err := quantPlan(quant)
	if err != nil {
		return resp, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		short := model[strings.LastIndex(model, "/")+1:]
		name = short + suffix
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return resp, ErrInvalidRequest(fmt.Sprintf("invalid output name %q", name))
	}

	// One conversion at a time; a concurrent request gets backpressure.
	if !m.convertMu.TryLock() {
		return resp, tooBusyError{what: "a conversion is already running"}
	}
	defer m.convertMu.Unlock()
	m.setConvertActive(true)
	defer m.setConvertActive(false)

	outDir := m.cfg.Registry.Dir()
	outputPath := filepath.Join(outDir, name)
	if fsutil.PathExists(outputPath) {
		return resp, alreadyExistsError{path: outputPath}
	}
	if free, ok := freeDiskMB(outDir); ok && free < int64(m.cfg.MinFreeDiskMB) {
		return resp, diskSpaceError{msg: fmt.Sprintf("low disk space: only %d MB free, models typically require several GB", free)}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return resp, fmt.Errorf("create models dir: %w", err)
	}

	jobID := uuid.NewString()
	args := []string{"--hf-path", model, "--mlx-path", outputPath}
	args = append(args, quantArgs...)

	m.log.Info().Str("job_id", jobID).Str("model", model).Str("quant", quant).
		Str("output", outputPath).Msg("conversion start")
	m.publisher.Publish(Event{Name: "convert_start", Model: model, Fields: map[string]any{
		"job_id": jobID, "output": outputPath, "quant": quant,
	}})

	start := time.Now()
	cmd := exec.CommandContext(ctx, m.cfg.ConvertBin, args...)
	tail := newTailBuffer(stderrTailBytes)
	cmd.Stdout = tail
	cmd.Stderr = tail
	runErr := cmd.Run()
	dur := time.Since(start)
	conversionDuration.Observe(dur.Seconds())

	m.mu.Lock()
	m.conversions++
	m.mu.Unlock()

	if runErr != nil {
		// Clean up partial output before reporting.
		if fsutil.PathExists(outputPath) {
			_ = os.RemoveAll(outputPath)
		}
		err := m.classifyConvertError(ctx, model, runErr, tail.String())
		conversionsTotal.WithLabelValues("error").Inc()
		m.setLastErr(err)
		m.log.Warn().Str("job_id", jobID).Dur("dur", dur).Err(err).Msg("conversion failed")
		m.publisher.Publish(Event{Name: "convert_failed", Model: model, Fields: map[string]any{
			"job_id": jobID, "error": err.Error(),
		}})
		return resp, err
	}

	size, err := fsutil.DirSize(outputPath)
	if err != nil || size == 0 {
		// Success without output violates the glue contract; report failure.
		_ = os.RemoveAll(outputPath)
		conversionsTotal.WithLabelValues("error").Inc()
		err := fmt.Errorf("converter exited cleanly but produced no output at %s", outputPath)
		m.setLastErr(err)
		return resp, err
	}

	conversionsTotal.WithLabelValues("ok").Inc()
	if err := m.cfg.Registry.Refresh(); err != nil {
		m.log.Warn().Err(err).Msg("registry refresh after conversion failed")
	}
	m.log.Info().Str("job_id", jobID).Dur("dur", dur).Str("size", fsutil.FormatSize(size)).Msg("conversion done")
	m.publisher.Publish(Event{Name: "convert_done", Model: model, Fields: map[string]any{
		"job_id": jobID, "output": outputPath, "size_bytes": size,
	}})

	resp = types.ConvertResponse{
		OutputPath:      outputPath,
		Size:            fsutil.FormatSize(size),
		Quantization:    quant,
		DurationSeconds: dur.Seconds(),
	}
	return resp, nil
}

// classifyConvertError maps converter failures to friendly errors, using
// the captured output tail for the common cases the panel can explain.
func (m *Manager) classifyConvertError(ctx context.Context, model string, runErr error, tail string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return ErrDependencyUnavailable(fmt.Sprintf("converter %q not found: install mlx-lm", m.cfg.ConvertBin))
	}
	low := strings.ToLower(tail)
	switch {
	case strings.Contains(low, "404") || strings.Contains(low, "not found"):
		return ErrModelNotFound(fmt.Sprintf("model %q was not found on HuggingFace: check the model path", model))
	case strings.Contains(low, "connection") || strings.Contains(low, "network"):
		return fmt.Errorf("network error while downloading %q: check your connection and try again", model)
	case strings.Contains(low, "no space") || strings.Contains(low, "disk"):
		return diskSpaceError{msg: "insufficient disk space: free up space and try again"}
	}
	if tail != "" {
		return fmt.Errorf("conversion failed: %v: %s", runErr, strings.TrimSpace(tail))
	}
	return fmt.Errorf("conversion failed: %w", runErr)
}

func (m *Manager) setConvertActive(v bool) {
	m.mu.Lock()
	m.convertActive = v
	m.mu.Unlock()
}

// tailBuffer keeps the last capacity bytes written to it.
type tailBuffer struct {
	cap int
	buf bytes.Buffer
}

func newTailBuffer(capacity int) *tailBuffer { return &tailBuffer{cap: capacity} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > t.cap {
		b := t.buf.Bytes()
		trimmed := append([]byte(nil), b[len(b)-t.cap:]...)
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
