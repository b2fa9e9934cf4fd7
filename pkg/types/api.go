package types

// ConvertRequest submits a conversion pipeline job.
type ConvertRequest struct {
	// Model alias or full Hugging Face repo id.
	// example: llama-3b
	Model string `json:"model" example:"llama-3b"`
	// Skip downloading when the local copy already exists.
	// example: false
	SkipDownload bool `json:"skip_download,omitempty" example:"false"`
	// Skip conversion when the GGUF artifact already exists.
	// example: false
	SkipConversion bool `json:"skip_conversion,omitempty" example:"false"`
	// Run the converted model afterwards as a smoke test.
	// example: false
	RunModel bool `json:"run_model,omitempty" example:"false"`
	// Override the converter --outtype; empty means use the
	// quantization detected from the hub metadata.
	// example: f16
	Outtype string `json:"outtype,omitempty" example:"f16"`
	// Proceed even when preflight flags the checkpoint as already
	// quantized (the upstream converter will most likely fail).
	// example: false
	Force bool `json:"force,omitempty" example:"false"`
}

// JobStatus describes one pipeline job for the jobs endpoints.
type JobStatus struct {
	// Job identifier.
	// example: job-1
	ID string `json:"id" example:"job-1"`
	// Resolved Hugging Face repo id.
	// example: mlx-community/Llama-3.2-3B-Instruct
	Repo string `json:"repo" example:"mlx-community/Llama-3.2-3B-Instruct"`
	// Lifecycle state.
	// example: running
	State JobState `json:"state" example:"running"`
	// Stage currently executing (or last executed).
	// example: convert
	Stage string `json:"stage,omitempty" example:"convert"`
	// Path of the produced GGUF artifact once conversion finished.
	Artifact string `json:"artifact,omitempty"`
	// Error message when State is failed.
	Error string `json:"error,omitempty"`
	// Unix seconds when the job was accepted.
	// example: 1700000000
	StartedUnix int64 `json:"started_unix" example:"1700000000"`
	// Unix seconds when the job reached a terminal state.
	FinishedUnix int64 `json:"finished_unix,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Jobs known to the pipeline, newest first.
	Jobs []JobStatus `json:"jobs"`
	// Number of jobs currently executing.
	// example: 1
	Active int `json:"active" example:"1"`
	// Maximum concurrently executing jobs before backpressure.
	// example: 2
	MaxActive int `json:"max_active" example:"2"`
	// Models directory being managed.
	// example: /home/user/models
	ModelsDir string `json:"models_dir" example:"/home/user/models"`
	// llama.cpp checkout directory.
	// example: /home/user/src/llama.cpp
	ToolchainDir string `json:"toolchain_dir" example:"/home/user/src/llama.cpp"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ModelsResponse wraps the list of artifacts returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// CatalogResponse wraps the alias table returned by GET /catalog.
type CatalogResponse struct {
	Entries []CatalogEntry `json:"entries"`
}

// LayersResponse is returned by GET /layers.
type LayersResponse struct {
	// Size token or model name the recommendation was derived from.
	// example: 32B
	Size string `json:"size" example:"32B"`
	// Recommended --n-gpu-layers value.
	// example: 60
	Layers int `json:"layers" example:"60"`
}

// ConvertAccepted is returned by POST /convert.
type ConvertAccepted struct {
	// Identifier of the accepted job.
	// example: job-1
	JobID string `json:"job_id" example:"job-1"`
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
