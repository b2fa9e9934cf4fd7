package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ggufctl/internal/common/execx"
	"ggufctl/internal/convert"
	"ggufctl/internal/hub"
	"ggufctl/internal/preflight"
	"ggufctl/internal/runner"
	"ggufctl/pkg/types"
)

type fakeHub struct {
	meta      types.ModelMeta
	metaErr   error
	downloads []string
	dlErr     error
}

func (f *fakeHub) FetchMeta(_ context.Context, repo string) (types.ModelMeta, error) {
	return f.meta, f.metaErr
}

func (f *fakeHub) Download(_ context.Context, repo, destDir string, _ hub.ProgressFunc) error {
	f.downloads = append(f.downloads, destDir)
	if f.dlErr != nil {
		return f.dlErr
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, "model.safetensors"), []byte("w"), 0o644)
}

type fakeToolchain struct {
	dir    string
	ready  bool
	synced int
	built  int
}

func (f *fakeToolchain) Sync(context.Context) error  { f.synced++; return nil }
func (f *fakeToolchain) Build(context.Context) error { f.built++; return nil }
func (f *fakeToolchain) ConvertScript() string {
	return filepath.Join(f.dir, "convert_hf_to_gguf.py")
}
func (f *fakeToolchain) LlamaCLI() string {
	return filepath.Join(f.dir, "build", "bin", "llama-cli")
}
func (f *fakeToolchain) Ready() bool { return f.ready }

type fakeConverter struct {
	calls   int
	outtype string
	err     error
	block   chan struct{} // when non-nil, Convert waits until closed
}

func (f *fakeConverter) Convert(_ context.Context, srcDir, outtype string, _ bool) (string, error) {
	f.calls++
	f.outtype = outtype
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	return convert.ArtifactPath(srcDir, outtype), nil
}

type fakeRunner struct {
	calls int
	gguf  string
	opts  runner.Opts
}

func (f *fakeRunner) Run(_ context.Context, ggufPath string, o runner.Opts, _ execx.LineFunc) error {
	f.calls++
	f.gguf = ggufPath
	f.opts = o
	return nil
}

func newTestPipeline(t *testing.T, h *fakeHub, tc *fakeToolchain, cv *fakeConverter, rn *fakeRunner, pub EventPublisher) *Pipeline {
	t.Helper()
	if tc.dir == "" {
		tc.dir = filepath.Join(t.TempDir(), "llama.cpp")
	}
	p := New(Config{
		Hub:       h,
		Toolchain: tc,
		Converter: cv,
		Runner:    rn,
		ModelsDir: t.TempDir(),
		MaxActive: 1,
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(p.Close)
	return p
}

func waitTerminal(t *testing.T, p *Pipeline, id string) types.JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := p.Job(id)
		if err != nil {
			t.Fatalf("job: %v", err)
		}
		if job.State == types.JobDone || job.State == types.JobFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return types.JobStatus{}
}

func TestSubmit_HappyPath(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{ModelType: "llama", Quantization: "f16"}}
	tc := &fakeToolchain{ready: true}
	cv := &fakeConverter{}
	pub := NewMemoryPublisher()
	p := newTestPipeline(t, h, tc, cv, &fakeRunner{}, pub)

	id, err := p.Submit(types.ConvertRequest{Model: "llama-3b"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job := waitTerminal(t, p, id)
	if job.State != types.JobDone {
		t.Fatalf("job failed: %+v", job)
	}
	if job.Repo != "mlx-community/Llama-3.2-3B-Instruct" {
		t.Fatalf("alias not resolved: %q", job.Repo)
	}
	if job.Artifact == "" || filepath.Base(job.Artifact) != "Llama-3.2-3B-Instruct-F16.gguf" {
		t.Fatalf("unexpected artifact: %q", job.Artifact)
	}
	if cv.calls != 1 {
		t.Fatalf("converter calls = %d", cv.calls)
	}
	if len(h.downloads) != 1 {
		t.Fatalf("downloads = %v", h.downloads)
	}
	// ready toolchain must not be rebuilt
	if tc.synced != 0 || tc.built != 0 {
		t.Fatalf("toolchain touched: %+v", tc)
	}
	var names []string
	for _, e := range pub.Events() {
		names = append(names, e.Name)
	}
	if names[0] != "job_accepted" || names[len(names)-1] != "job_done" {
		t.Fatalf("event order: %v", names)
	}
}

func TestSubmit_TooBusy(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	cv := &fakeConverter{block: make(chan struct{})}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, cv, &fakeRunner{}, nil)

	id, err := p.Submit(types.ConvertRequest{Model: "org/a-7B"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err = p.Submit(types.ConvertRequest{Model: "org/b-7B"})
	if err == nil || !IsTooBusy(err) {
		t.Fatalf("expected too-busy, got %v", err)
	}
	close(cv.block)
	waitTerminal(t, p, id)
	// capacity freed after completion
	if _, err := p.Submit(types.ConvertRequest{Model: "org/c-7B"}); err != nil {
		t.Fatalf("submit after drain: %v", err)
	}
}

func TestExecute_RejectsPrequantized(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "gptq"}}
	cv := &fakeConverter{}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, cv, &fakeRunner{}, nil)

	_, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/x-4bit-7B"}, nil)
	if err == nil || !preflight.IsPrequantized(err) {
		t.Fatalf("expected prequantized error, got %v", err)
	}
	if len(h.downloads) != 0 {
		t.Fatalf("must reject before downloading, got %v", h.downloads)
	}
	if cv.calls != 0 {
		t.Fatalf("converter must not run")
	}
}

func TestExecute_ForceOverridesPreflight(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "8bit"}}
	cv := &fakeConverter{}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, cv, &fakeRunner{}, nil)

	if _, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/x-7B", Force: true}, nil); err != nil {
		t.Fatalf("forced execute: %v", err)
	}
	if cv.calls != 1 {
		t.Fatalf("converter calls = %d", cv.calls)
	}
}

func TestExecute_BuildsToolchainWhenNotReady(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	tc := &fakeToolchain{ready: false}
	p := newTestPipeline(t, h, tc, &fakeConverter{}, &fakeRunner{}, nil)

	if _, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/x-7B"}, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tc.synced != 1 || tc.built != 1 {
		t.Fatalf("toolchain not prepared: %+v", tc)
	}
}

func TestExecute_SkipFlags(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	cv := &fakeConverter{}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, cv, &fakeRunner{}, nil)

	artifact, err := p.Execute(context.Background(), types.ConvertRequest{
		Model:          "org/Some-7B",
		SkipDownload:   true,
		SkipConversion: true,
	}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(h.downloads) != 0 || cv.calls != 0 {
		t.Fatalf("skip flags ignored: downloads=%v converts=%d", h.downloads, cv.calls)
	}
	if filepath.Base(artifact) != "Some-7B-F16.gguf" {
		t.Fatalf("artifact = %q", artifact)
	}
}

func TestExecute_OuttypePrecedence(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	cv := &fakeConverter{}
	p := New(Config{
		Hub:            h,
		Toolchain:      &fakeToolchain{dir: filepath.Join(t.TempDir(), "llama.cpp"), ready: true},
		Converter:      cv,
		Runner:         &fakeRunner{},
		ModelsDir:      t.TempDir(),
		DefaultOuttype: "q8_0",
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(p.Close)

	// empty request outtype falls back to the configured default, not the
	// quantization from the hub metadata
	artifact, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/a-7B"}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cv.outtype != "q8_0" {
		t.Fatalf("outtype = %q, want configured default q8_0", cv.outtype)
	}
	if filepath.Base(artifact) != "a-7B-Q8_0.gguf" {
		t.Fatalf("artifact = %q", artifact)
	}

	// explicit request outtype wins over the configured default
	if _, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/a-7B", Outtype: "bf16"}, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cv.outtype != "bf16" {
		t.Fatalf("outtype = %q, want request value bf16", cv.outtype)
	}
}

func TestExecute_RunModel(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	rn := &fakeRunner{}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, &fakeConverter{}, rn, nil)

	artifact, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/DeepSeek-32B", RunModel: true}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rn.calls != 1 || rn.gguf != artifact {
		t.Fatalf("runner not invoked correctly: %+v", rn)
	}
	if rn.opts.GPULayers != 60 {
		t.Fatalf("32B model should run with 60 layers, got %d", rn.opts.GPULayers)
	}
}

func TestExecute_MetadataError(t *testing.T) {
	h := &fakeHub{metaErr: errors.New("boom")}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, &fakeConverter{}, &fakeRunner{}, nil)
	if _, err := p.Execute(context.Background(), types.ConvertRequest{Model: "org/x"}, nil); err == nil {
		t.Fatalf("expected metadata error")
	}
}

func TestJobsAndStatus(t *testing.T) {
	h := &fakeHub{meta: types.ModelMeta{Quantization: "f16"}}
	p := newTestPipeline(t, h, &fakeToolchain{ready: true}, &fakeConverter{}, &fakeRunner{}, nil)

	if _, err := p.Job("job-404"); err == nil || !IsJobNotFound(err) {
		t.Fatalf("expected job-not-found")
	}
	id, err := p.Submit(types.ConvertRequest{Model: "org/a-3B"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, p, id)
	st := p.Status()
	if len(st.Jobs) != 1 || st.Jobs[0].ID != id {
		t.Fatalf("status jobs: %+v", st.Jobs)
	}
	if st.MaxActive != 1 {
		t.Fatalf("max active = %d", st.MaxActive)
	}
}
