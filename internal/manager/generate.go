package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"mlxd/pkg/types"
)

// Generation defaults matching the panel's form; applied when the
// request leaves a parameter at its zero value.
const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
	defaultTopP        = 1.0
	defaultRepPenalty  = 1.0
)

// completionRequest is the OpenAI-style payload sent to the spawned server.
type completionRequest struct {
	Prompt            string  `json:"prompt"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	Stream            bool    `json:"stream"`
}

// completionChunk is one SSE data frame from the spawned server.
type completionChunk struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// tokenLine is one NDJSON line written to the client.
type tokenLine struct {
	Token string `json:"token"`
}

// doneLine terminates the NDJSON stream.
type doneLine struct {
	Done         bool   `json:"done"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Generate loads (or reuses) the inference runtime for the requested
// artifact and streams generated tokens to w as NDJSON lines. All
// parameters pass through to the external server unchanged.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrInvalidRequest("prompt is required")
	}
	modelPath, err := m.resolveModelPath(req)
	if err != nil {
		return err
	}
	fillGenerateDefaults(&req)

	rt, err := m.ensureRuntime(ctx, modelPath)
	if err != nil {
		m.setLastErr(err)
		generationsTotal.WithLabelValues("error").Inc()
		return err
	}
	release, err := m.beginGeneration(ctx, rt)
	if err != nil {
		generationsTotal.WithLabelValues("busy").Inc()
		return err
	}
	defer release()

	m.mu.Lock()
	m.generations++
	m.mu.Unlock()

	if err := m.streamCompletion(ctx, rt, req, w, flush); err != nil {
		m.setLastErr(err)
		generationsTotal.WithLabelValues("error").Inc()
		return err
	}
	generationsTotal.WithLabelValues("ok").Inc()
	return nil
}

// resolveModelPath turns the request's model reference into an existing
// artifact directory path.
func (m *Manager) resolveModelPath(req types.GenerateRequest) (string, error) {
	path := strings.TrimSpace(req.ModelPath)
	if path == "" {
		name := strings.TrimSpace(req.Model)
		if name == "" {
			return "", ErrInvalidRequest("model_path or model is required")
		}
		art, ok := m.cfg.Registry.Lookup(name)
		if !ok {
			return "", ErrModelNotFound("model not found: " + name)
		}
		path = art.Path
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", ErrModelNotFound("model path does not exist: " + path)
	}
	if !fi.IsDir() {
		return "", ErrInvalidRequest("model path is not a directory: " + path)
	}
	return path, nil
}

func fillGenerateDefaults(req *types.GenerateRequest) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	// Temperature is a pointer so an explicit 0.0 (deterministic
	// sampling) survives; only an omitted field gets the default.
	if req.Temperature == nil {
		t := float64(defaultTemperature)
		req.Temperature = &t
	}
	if req.TopP <= 0 {
		req.TopP = defaultTopP
	}
	if req.RepetitionPenalty <= 0 {
		req.RepetitionPenalty = defaultRepPenalty
	}
}

// streamCompletion proxies the runtime's SSE completion stream to w as
// NDJSON token lines terminated by a done line.
func (m *Manager) streamCompletion(ctx context.Context, rt *Runtime, req types.GenerateRequest, w io.Writer, flush func()) error {
	temperature := float64(defaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	payload := completionRequest{
		Prompt:            req.Prompt,
		MaxTokens:         req.MaxTokens,
		Temperature:       temperature,
		TopP:              req.TopP,
		RepetitionPenalty: req.RepetitionPenalty,
		Stream:            true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, rt.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("inference server request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, stderrTailBytes))
		return fmt.Errorf("inference server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	enc := json.NewEncoder(w)
	finishReason := ""
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			if l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
				data := strings.TrimSpace(l[len("data:"):])
				if data == "[DONE]" {
					break
				}
				var chunk completionChunk
				if e := json.Unmarshal([]byte(data), &chunk); e == nil && len(chunk.Choices) > 0 {
					if frag := chunk.Choices[0].Text; frag != "" {
						if err := enc.Encode(tokenLine{Token: frag}); err != nil {
							return err
						}
						if req.Stream && flush != nil {
							flush()
						}
					}
					if fr := chunk.Choices[0].FinishReason; fr != "" {
						finishReason = fr
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
	if err := enc.Encode(doneLine{Done: true, FinishReason: finishReason}); err != nil {
		return err
	}
	if flush != nil {
		flush()
	}
	return nil
}
