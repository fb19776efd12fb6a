package types

// Artifact describes a converted MLX model directory on disk.
type Artifact struct {
	// Stable identifier, the directory name.
	// example: LFM2-1.2B-RAG-q4
	Name string `json:"name" example:"LFM2-1.2B-RAG-q4"`
	// Absolute path to the artifact directory.
	// example: /home/user/models/mlx/LFM2-1.2B-RAG-q4
	Path string `json:"path" example:"/home/user/models/mlx/LFM2-1.2B-RAG-q4"`
	// Total size of all files in the directory, in bytes.
	// example: 734003200
	SizeBytes int64 `json:"size_bytes" example:"734003200"`
	// Human-formatted size.
	// example: 700.0 MB
	Size string `json:"size" example:"700.0 MB"`
}
