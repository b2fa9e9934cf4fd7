package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ggufctl/internal/catalog"
	"ggufctl/internal/common/execx"
	"ggufctl/internal/common/fsutil"
	"ggufctl/internal/convert"
	"ggufctl/internal/hub"
	"ggufctl/internal/preflight"
	"ggufctl/internal/runner"
	"ggufctl/pkg/types"
)

// HubClient is the hub surface the pipeline needs.
type HubClient interface {
	FetchMeta(ctx context.Context, repo string) (types.ModelMeta, error)
	Download(ctx context.Context, repo, destDir string, progress hub.ProgressFunc) error
}

// Toolchain is the llama.cpp checkout surface the pipeline needs.
type Toolchain interface {
	Sync(ctx context.Context) error
	Build(ctx context.Context) error
	ConvertScript() string
	LlamaCLI() string
	Ready() bool
}

// Converter runs the HF→GGUF conversion script.
type Converter interface {
	Convert(ctx context.Context, srcDir, outtype string, force bool) (string, error)
}

// ModelRunner smoke-tests a converted artifact.
type ModelRunner interface {
	Run(ctx context.Context, ggufPath string, o runner.Opts, onLine execx.LineFunc) error
}

// Defaults applied when corresponding Config fields are unset.
const defaultMaxActive = 1

// Config encapsulates all tunables for Pipeline construction.
type Config struct {
	Hub       HubClient
	Toolchain Toolchain
	Converter Converter
	Runner    ModelRunner
	ModelsDir string
	CtxSize   int
	// DefaultOuttype is used when a request leaves outtype empty; when it
	// is empty too, the quantization detected from the hub metadata wins.
	DefaultOuttype string
	MaxActive      int
	Publisher      EventPublisher
	Logger         zerolog.Logger
}

// Pipeline owns job records and drives the conversion stages.
type Pipeline struct {
	cfg Config
	log zerolog.Logger
	pub EventPublisher

	mu     sync.RWMutex
	jobs   map[string]*types.JobStatus
	order  []string // job ids, oldest first
	active int
	seq    int

	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time
}

// New constructs a Pipeline from Config.
func New(cfg Config) *Pipeline {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = defaultMaxActive
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:       cfg,
		log:       cfg.Logger,
		pub:       pub,
		jobs:      make(map[string]*types.JobStatus),
		baseCtx:   ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Close cancels running jobs and waits for them to wind down.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

// Ready reports whether the pipeline can accept work.
func (p *Pipeline) Ready() bool {
	return fsutil.PathExists(p.cfg.ModelsDir)
}

// Submit validates req, registers a job, and executes it in the background.
// Returns the job id, or a too-busy error when the job cap is reached.
func (p *Pipeline) Submit(req types.ConvertRequest) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return "", fmt.Errorf("model is required")
	}
	repo := catalog.Resolve(model)

	p.mu.Lock()
	if p.active >= p.cfg.MaxActive {
		p.mu.Unlock()
		return "", ErrTooBusy(repo)
	}
	p.seq++
	id := fmt.Sprintf("job-%d", p.seq)
	p.jobs[id] = &types.JobStatus{
		ID:          id,
		Repo:        repo,
		State:       types.JobQueued,
		StartedUnix: time.Now().Unix(),
	}
	p.order = append(p.order, id)
	p.active++
	jobsActive.Set(float64(p.active))
	p.mu.Unlock()

	p.pub.Publish(Event{Name: "job_accepted", JobID: id, Repo: repo})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runJob(id, req)
	}()
	return id, nil
}

func (p *Pipeline) runJob(id string, req types.ConvertRequest) {
	p.setState(id, types.JobRunning, "")
	artifact, err := p.Execute(p.baseCtx, req, func(stage string) { p.setStage(id, stage) })

	p.mu.Lock()
	job := p.jobs[id]
	p.active--
	jobsActive.Set(float64(p.active))
	now := time.Now().Unix()
	if err != nil {
		job.State = types.JobFailed
		job.Error = err.Error()
		job.FinishedUnix = now
	} else {
		job.State = types.JobDone
		job.Artifact = artifact
		job.FinishedUnix = now
	}
	repo := job.Repo
	p.mu.Unlock()

	if err != nil {
		jobsTotal.WithLabelValues(string(types.JobFailed)).Inc()
		p.log.Error().Err(err).Str("job", id).Str("repo", repo).Msg("pipeline job failed")
		p.pub.Publish(Event{Name: "job_failed", JobID: id, Repo: repo, Fields: map[string]any{"error": err.Error()}})
		return
	}
	jobsTotal.WithLabelValues(string(types.JobDone)).Inc()
	p.log.Info().Str("job", id).Str("repo", repo).Str("artifact", artifact).Msg("pipeline job done")
	p.pub.Publish(Event{Name: "job_done", JobID: id, Repo: repo, Fields: map[string]any{"artifact": artifact}})
}

// Execute runs the full conversion flow synchronously and returns the
// artifact path. onStage (may be nil) is notified as stages begin.
func (p *Pipeline) Execute(ctx context.Context, req types.ConvertRequest, onStage func(stage string)) (string, error) {
	if onStage == nil {
		onStage = func(string) {}
	}
	stage := func(name string, fn func() error) error {
		onStage(name)
		start := time.Now()
		err := fn()
		observeStage(name, start, err)
		return err
	}

	onStage(types.StageResolve)
	repo := catalog.Resolve(strings.TrimSpace(req.Model))
	if repo == "" {
		return "", fmt.Errorf("model is required")
	}
	localDir := hub.LocalDir(p.cfg.ModelsDir, repo)

	var meta types.ModelMeta
	if err := stage(types.StageMetadata, func() error {
		m, err := p.cfg.Hub.FetchMeta(ctx, repo)
		if err != nil {
			return err
		}
		meta = m
		// The documented converter limitation: pre-quantized weights fail
		// with "cannot map tensor". Reject before downloading gigabytes.
		if !req.Force {
			return preflight.CheckMeta(meta)
		}
		return nil
	}); err != nil {
		return "", err
	}

	if !req.SkipDownload {
		if err := stage(types.StageDownload, func() error {
			return p.cfg.Hub.Download(ctx, repo, localDir, func(e hub.ProgressEvent) {
				p.log.Debug().Str("event", e.Event).Str("path", e.Path).Int64("bytes", e.Bytes).Msg("download progress")
			})
		}); err != nil {
			return "", err
		}
	}

	if err := stage(types.StagePreflight, func() error {
		if !fsutil.PathExists(localDir) {
			p.log.Warn().Str("dir", localDir).Msg("checkpoint directory not present, skipping local preflight")
			return nil
		}
		rep, err := preflight.CheckLocal(meta, localDir)
		if err != nil {
			if req.Force && preflight.IsPrequantized(err) {
				p.log.Warn().Err(err).Msg("preflight overridden by force")
				return nil
			}
			return err
		}
		for _, w := range rep.Warnings {
			p.log.Warn().Str("repo", repo).Msg(w)
		}
		return nil
	}); err != nil {
		return "", err
	}

	if !p.cfg.Toolchain.Ready() {
		if err := stage(types.StageToolchain, func() error {
			if err := p.cfg.Toolchain.Sync(ctx); err != nil {
				return err
			}
			return p.cfg.Toolchain.Build(ctx)
		}); err != nil {
			return "", err
		}
	}

	outtype := req.Outtype
	if outtype == "" {
		outtype = p.cfg.DefaultOuttype
	}
	if outtype == "" {
		outtype = meta.Quantization
	}
	var artifact string
	if req.SkipConversion {
		artifact = convert.ArtifactPath(localDir, outtype)
	} else if err := stage(types.StageConvert, func() error {
		a, err := p.cfg.Converter.Convert(ctx, localDir, outtype, false)
		if err != nil {
			return err
		}
		artifact = a
		return nil
	}); err != nil {
		return "", err
	}

	if req.RunModel {
		if err := stage(types.StageRun, func() error {
			opts := runner.Opts{GPULayers: catalog.LayersForName(repo), CtxSize: p.cfg.CtxSize}
			return p.cfg.Runner.Run(ctx, artifact, opts, func(l string) {
				p.log.Info().Str("tool", "llama-cli").Msg(l)
			})
		}); err != nil {
			return "", err
		}
	}
	return artifact, nil
}

func (p *Pipeline) setState(id string, s types.JobState, stage string) {
	p.mu.Lock()
	if job, ok := p.jobs[id]; ok {
		job.State = s
		if stage != "" {
			job.Stage = stage
		}
	}
	p.mu.Unlock()
}

func (p *Pipeline) setStage(id, stage string) {
	p.mu.Lock()
	repo := ""
	if job, ok := p.jobs[id]; ok {
		job.Stage = stage
		repo = job.Repo
	}
	p.mu.Unlock()
	p.pub.Publish(Event{Name: "stage", JobID: id, Repo: repo, Fields: map[string]any{"stage": stage}})
}

// Job returns a snapshot of one job.
func (p *Pipeline) Job(id string) (types.JobStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	if !ok {
		return types.JobStatus{}, ErrJobNotFound(id)
	}
	return *job, nil
}

// Jobs returns snapshots of all jobs, newest first.
func (p *Pipeline) Jobs() []types.JobStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.JobStatus, 0, len(p.order))
	for i := len(p.order) - 1; i >= 0; i-- {
		out = append(out, *p.jobs[p.order[i]])
	}
	return out
}

// Status reports pipeline state for the status endpoint.
func (p *Pipeline) Status() types.StatusResponse {
	p.mu.RLock()
	active := p.active
	p.mu.RUnlock()
	return types.StatusResponse{
		Jobs:           p.Jobs(),
		Active:         active,
		MaxActive:      p.cfg.MaxActive,
		ModelsDir:      p.cfg.ModelsDir,
		ToolchainDir:   p.toolchainDir(),
		UptimeSeconds:  int64(time.Since(p.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
}

func (p *Pipeline) toolchainDir() string {
	// ConvertScript lives at the checkout root.
	return filepath.Dir(p.cfg.Toolchain.ConvertScript())
}
