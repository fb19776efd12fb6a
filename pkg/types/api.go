package types

// ConvertRequest is the payload for POST /api/convert.
type ConvertRequest struct {
	// HuggingFace model identifier in "org/name" form.
	// example: LiquidAI/LFM2-1.2B-RAG
	Model string `json:"model" example:"LiquidAI/LFM2-1.2B-RAG"`
	// Optional name for the output directory. Defaults to the model's
	// short name with a quantization suffix.
	// example: lfm2-rag-q4
	Name string `json:"name,omitempty" example:"lfm2-rag-q4"`
	// Quantization level: "4-bit", "8-bit" or "bf16".
	// example: 4-bit
	Quantization string `json:"quantization,omitempty" example:"4-bit"`
}

// ConvertResponse is returned by POST /api/convert on success.
type ConvertResponse struct {
	// Absolute path of the produced artifact directory.
	// example: /home/user/models/mlx/LFM2-1.2B-RAG-q4
	OutputPath string `json:"output_path" example:"/home/user/models/mlx/LFM2-1.2B-RAG-q4"`
	// Human-formatted artifact size.
	// example: 700.0 MB
	Size string `json:"size" example:"700.0 MB"`
	// Quantization level that was applied.
	// example: 4-bit
	Quantization string `json:"quantization" example:"4-bit"`
	// Wall-clock duration of the conversion in seconds.
	// example: 184.2
	DurationSeconds float64 `json:"duration_seconds" example:"184.2"`
}

// GenerateRequest is the payload for POST /api/generate.
type GenerateRequest struct {
	// Path to a converted artifact directory. Either this or Model must be set.
	// example: /home/user/models/mlx/LFM2-1.2B-RAG-q4
	ModelPath string `json:"model_path,omitempty" example:"/home/user/models/mlx/LFM2-1.2B-RAG-q4"`
	// Artifact name relative to the models dir; resolved against the registry.
	// example: LFM2-1.2B-RAG-q4
	Model string `json:"model,omitempty" example:"LFM2-1.2B-RAG-q4"`
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Sampling temperature. 0.0 means deterministic; omit for the
	// default of 0.7.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Penalty applied to repeated tokens.
	// example: 1.1
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.1"`
	// If true, tokens are flushed to the client as they arrive.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// ArtifactsResponse wraps the list returned by GET /api/models.
type ArtifactsResponse struct {
	// Converted artifacts found in the models dir.
	Artifacts []Artifact `json:"artifacts"`
}

// Prompt is one example prompt shown in the panel's generate tab.
type Prompt struct {
	// Display name; equal to the text when the file carries no names.
	// example: Creative Writing
	Name string `json:"name" example:"Creative Writing"`
	// Prompt text inserted into the form.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
}

// PromptsResponse wraps the example prompts returned by GET /api/prompts.
type PromptsResponse struct {
	// Example prompts loaded from the side-channel file.
	Prompts []Prompt `json:"prompts"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RuntimeStatus summarizes a cached inference runtime for /status.
type RuntimeStatus struct {
	// Artifact path this runtime serves.
	// example: /home/user/models/mlx/LFM2-1.2B-RAG-q4
	ModelPath string `json:"model_path" example:"/home/user/models/mlx/LFM2-1.2B-RAG-q4"`
	// Lifecycle state (spawning, ready).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this runtime served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// TCP port of the spawned server.
	// example: 30001
	Port int `json:"port" example:"30001"`
	// Process ID of the spawned server.
	// example: 12345
	PID int `json:"pid" example:"12345"`
	// Current queue length for incoming generations.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight generations.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Directory scanned for artifacts.
	// example: /home/user/models/mlx
	ModelsDir string `json:"models_dir" example:"/home/user/models/mlx"`
	// Number of artifacts currently known to the registry.
	// example: 3
	ArtifactCount int `json:"artifact_count" example:"3"`
	// Cached inference runtimes.
	Runtimes []RuntimeStatus `json:"runtimes"`
	// True while a conversion is running.
	ConversionActive bool `json:"conversion_active"`
	// Total conversions attempted since start.
	// example: 4
	ConversionsTotal uint64 `json:"conversions_total" example:"4"`
	// Total generations served since start.
	// example: 17
	GenerationsTotal uint64 `json:"generations_total" example:"17"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
