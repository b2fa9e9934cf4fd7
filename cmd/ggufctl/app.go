package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"ggufctl/internal/catalog"
	"ggufctl/internal/common/fsutil"
	"ggufctl/internal/convert"
	"ggufctl/internal/httpapi"
	"ggufctl/internal/hub"
	"ggufctl/internal/pipeline"
	"ggufctl/internal/registry"
	"ggufctl/internal/runner"
	"ggufctl/internal/toolchain"
	"ggufctl/pkg/types"
)

func expandModelsDir(s *settings) (string, error) {
	dir, err := fsutil.ExpandHome(s.cfg.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("models dir: %w", err)
	}
	return dir, nil
}

func newHubClient(s *settings) *hub.Client {
	return hub.New(
		hub.WithEndpoint(s.cfg.HFEndpoint),
		hub.WithToken(s.cfg.HFToken),
		hub.WithLogger(s.log),
	)
}

func newCheckout(s *settings) *toolchain.Checkout {
	dir, err := fsutil.ExpandHome(s.cfg.LlamaCppDir)
	if err != nil {
		dir = s.cfg.LlamaCppDir
	}
	return toolchain.New(dir, s.cfg.GPUBackend, s.log)
}

// buildPipeline wires the hub client, toolchain, converter and runner into a
// Pipeline. The returned cleanup cancels outstanding jobs.
func buildPipeline(s *settings) (*pipeline.Pipeline, func(), error) {
	modelsDir, err := expandModelsDir(s)
	if err != nil {
		return nil, nil, err
	}
	if err := fsutil.EnsureDir(modelsDir); err != nil {
		return nil, nil, fmt.Errorf("create models dir: %w", err)
	}
	tc := newCheckout(s)
	pipe := pipeline.New(pipeline.Config{
		Hub:            newHubClient(s),
		Toolchain:      tc,
		Converter:      convert.New(s.cfg.PythonBin, tc.ConvertScript(), s.log),
		Runner:         runner.New(tc.LlamaCLI(), s.log),
		ModelsDir:      modelsDir,
		CtxSize:        s.cfg.CtxSize,
		DefaultOuttype: s.cfg.DefaultOuttype,
		MaxActive:      s.cfg.MaxActiveJobs,
		Logger:         s.log,
	})
	return pipe, pipe.Close, nil
}

// resolveArtifact turns a CLI argument into a GGUF path: an existing file is
// used as-is, anything else is treated as a model name whose artifact lives
// under the models directory.
func resolveArtifact(s *settings, arg string) (string, error) {
	if p, err := fsutil.ExpandHome(arg); err == nil && fsutil.PathExists(p) {
		return p, nil
	}
	modelsDir, err := expandModelsDir(s)
	if err != nil {
		return "", err
	}
	repo := catalog.Resolve(arg)
	localDir := hub.LocalDir(modelsDir, repo)
	outtype := s.cfg.DefaultOuttype
	if outtype == "" {
		outtype = convert.DefaultOuttype
	}
	return convert.ArtifactPath(localDir, outtype), nil
}

// app adapts the pipeline and the artifact scanner to the HTTP API surface.
type app struct {
	pipe      *pipeline.Pipeline
	scanner   *registry.GGUFScanner
	modelsDir string
}

func (a *app) ListModels() ([]types.Model, error)              { return a.scanner.Scan(a.modelsDir) }
func (a *app) Status() types.StatusResponse                    { return a.pipe.Status() }
func (a *app) Submit(req types.ConvertRequest) (string, error) { return a.pipe.Submit(req) }
func (a *app) Jobs() []types.JobStatus                         { return a.pipe.Jobs() }
func (a *app) Job(id string) (types.JobStatus, error)          { return a.pipe.Job(id) }
func (a *app) Ready() bool                                     { return a.pipe.Ready() }

func newServeCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			httpapi.SetLogger(s.log)
			pipe, cleanup, err := buildPipeline(s)
			if err != nil {
				return err
			}
			defer cleanup()
			modelsDir, err := expandModelsDir(s)
			if err != nil {
				return err
			}
			svc := &app{pipe: pipe, scanner: registry.NewGGUFScanner(), modelsDir: modelsDir}
			srv := &http.Server{Addr: s.cfg.Addr, Handler: httpapi.NewMux(svc)}

			errCh := make(chan error, 1)
			go func() {
				s.log.Info().Str("addr", s.cfg.Addr).Str("models_dir", modelsDir).Msg("ggufctl listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := signalContext(cmd)
			defer stop()
			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				s.log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&s.cfg.Addr, "addr", s.cfg.Addr, "HTTP listen address, e.g. :8090")
	cmd.Flags().IntVar(&s.cfg.MaxActiveJobs, "max-active-jobs", s.cfg.MaxActiveJobs, "Concurrent conversion jobs before backpressure")
	return cmd
}
