package types

// Model represents a converted GGUF artifact on disk.
type Model struct {
	// Stable identifier for the artifact (the filename).
	// example: Llama-3.2-3B-Instruct-F16.gguf
	ID string `json:"id" example:"Llama-3.2-3B-Instruct-F16.gguf"`
	// Human-friendly name.
	// example: Llama-3.2-3B-Instruct (F16)
	Name string `json:"name" example:"Llama-3.2-3B-Instruct (F16)"`
	// Absolute path to the artifact on disk.
	// example: /home/user/models/Llama-3.2-3B-Instruct-F16.gguf
	Path string `json:"path" example:"/home/user/models/Llama-3.2-3B-Instruct-F16.gguf"`
	// Quantization / precision token parsed from the filename.
	// example: F16
	Quant string `json:"quant,omitempty" example:"F16"`
	// Optional family (e.g., llama, qwen, deepseek).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
	// File size in bytes.
	// example: 6433687552
	SizeBytes int64 `json:"size_bytes,omitempty" example:"6433687552"`
}

// CatalogEntry maps a short alias to a full Hugging Face repository id.
type CatalogEntry struct {
	// Short alias usable on the command line.
	// example: llama-3b
	Alias string `json:"alias" example:"llama-3b"`
	// Full Hugging Face repository id.
	// example: mlx-community/Llama-3.2-3B-Instruct
	Repo string `json:"repo" example:"mlx-community/Llama-3.2-3B-Instruct"`
}

// RepoFile is one entry of a Hugging Face repository tree listing.
type RepoFile struct {
	Type string `json:"type"`
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
	Path string `json:"path"`
	// LFS pointer metadata; present for large weight files.
	LFS *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo carries Git LFS object metadata for a repo file.
type LFSInfo struct {
	Oid         string `json:"oid"`
	Size        int64  `json:"size"`
	PointerSize int    `json:"pointerSize"`
}

// ModelMeta is the subset of a Hugging Face config.json the pipeline
// cares about: architecture family and pre-applied quantization.
type ModelMeta struct {
	// Model architecture family reported by the hub.
	// example: llama
	ModelType string `json:"model_type" example:"llama"`
	// Quantization method already applied to the checkpoint weights.
	// "f16" means full precision (no quantization_config present).
	// example: f16
	Quantization string `json:"quantization" example:"f16"`
	// Parameter count in billions when it can be derived from the
	// model name (0 when unknown).
	// example: 3
	ParamsB float64 `json:"params_b,omitempty" example:"3"`
}

// JobState is the lifecycle state of a pipeline job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Stage names reported by pipeline jobs.
const (
	StageResolve   = "resolve"
	StageMetadata  = "metadata"
	StageDownload  = "download"
	StagePreflight = "preflight"
	StageToolchain = "toolchain"
	StageConvert   = "convert"
	StageRun       = "run"
)
