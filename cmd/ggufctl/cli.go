package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ggufctl/internal/catalog"
	"ggufctl/internal/config"
	"ggufctl/internal/hub"
	"ggufctl/internal/preflight"
	"ggufctl/internal/registry"
	"ggufctl/internal/runner"
	"ggufctl/internal/toolchain"
	"ggufctl/pkg/types"
)

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// settings carries the resolved runtime configuration for all subcommands.
// Resolution order: built-in defaults < GGUFCTL_* environment < --config file < flags.
type settings struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	cfg config.Config
	log zerolog.Logger
}

func defaultSettings() *settings {
	return &settings{
		LogLevel:  envStr("GGUFCTL_LOG_LEVEL", "info"),
		LogFormat: envStr("GGUFCTL_LOG_FORMAT", "console"),
		cfg: config.Config{
			Addr:           envStr("GGUFCTL_ADDR", ":8090"),
			ModelsDir:      envStr("GGUFCTL_MODELS_DIR", "~/models/llm"),
			LlamaCppDir:    envStr("GGUFCTL_LLAMA_CPP_DIR", "~/llama.cpp"),
			HFEndpoint:     envStr("GGUFCTL_HF_ENDPOINT", hub.DefaultEndpoint),
			HFToken:        envStr("HF_TOKEN", os.Getenv("GGUFCTL_HF_TOKEN")),
			GPUBackend:     envStr("GGUFCTL_GPU_BACKEND", toolchain.BackendNone),
			CtxSize:        envInt("GGUFCTL_CTX_SIZE", runner.DefaultCtxSize),
			DefaultOuttype: envStr("GGUFCTL_OUTTYPE", ""),
			MaxActiveJobs:  envInt("GGUFCTL_MAX_ACTIVE_JOBS", 1),
			PythonBin:      envStr("GGUFCTL_PYTHON", "python3"),
		},
	}
}

// merge overlays non-zero config file values onto s, except where the
// corresponding flag was set explicitly.
func (s *settings) merge(cmd *cobra.Command, fileCfg config.Config) {
	keep := func(name string) bool {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			return true
		}
		if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
			return true
		}
		return false
	}
	if fileCfg.Addr != "" && !keep("addr") {
		s.cfg.Addr = fileCfg.Addr
	}
	if fileCfg.ModelsDir != "" && !keep("models-dir") {
		s.cfg.ModelsDir = fileCfg.ModelsDir
	}
	if fileCfg.LlamaCppDir != "" && !keep("llama-cpp-dir") {
		s.cfg.LlamaCppDir = fileCfg.LlamaCppDir
	}
	if fileCfg.HFEndpoint != "" && !keep("hf-endpoint") {
		s.cfg.HFEndpoint = fileCfg.HFEndpoint
	}
	if fileCfg.HFToken != "" && !keep("hf-token") {
		s.cfg.HFToken = fileCfg.HFToken
	}
	if fileCfg.GPUBackend != "" && !keep("gpu-backend") {
		s.cfg.GPUBackend = fileCfg.GPUBackend
	}
	if fileCfg.CtxSize > 0 && !keep("ctx-size") {
		s.cfg.CtxSize = fileCfg.CtxSize
	}
	if fileCfg.DefaultOuttype != "" && !keep("outtype") {
		s.cfg.DefaultOuttype = fileCfg.DefaultOuttype
	}
	if fileCfg.MaxActiveJobs > 0 && !keep("max-active-jobs") {
		s.cfg.MaxActiveJobs = fileCfg.MaxActiveJobs
	}
	if fileCfg.PythonBin != "" && !keep("python") {
		s.cfg.PythonBin = fileCfg.PythonBin
	}
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// newRootCmd constructs the ggufctl command tree.
func newRootCmd() *cobra.Command {
	s := defaultSettings()

	root := &cobra.Command{
		Use:           "ggufctl",
		Short:         "Convert Hugging Face checkpoints to GGUF via llama.cpp",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&s.ConfigPath, "config", envStr("GGUFCTL_CONFIG", ""), "Config file (.yaml, .json or .toml)")
	pf.StringVar(&s.cfg.ModelsDir, "models-dir", s.cfg.ModelsDir, "Directory for checkpoints and GGUF artifacts")
	pf.StringVar(&s.cfg.LlamaCppDir, "llama-cpp-dir", s.cfg.LlamaCppDir, "llama.cpp checkout directory")
	pf.StringVar(&s.cfg.HFEndpoint, "hf-endpoint", s.cfg.HFEndpoint, "Hugging Face Hub endpoint")
	pf.StringVar(&s.cfg.HFToken, "hf-token", s.cfg.HFToken, "Hugging Face token for private repos")
	pf.StringVar(&s.cfg.GPUBackend, "gpu-backend", s.cfg.GPUBackend, "GPU backend for the llama.cpp build: none|cuda|metal")
	pf.IntVar(&s.cfg.CtxSize, "ctx-size", s.cfg.CtxSize, "Context size passed to llama-cli")
	pf.StringVar(&s.cfg.PythonBin, "python", s.cfg.PythonBin, "Python interpreter for the conversion script")
	pf.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level: trace|debug|info|warn|error")
	pf.StringVar(&s.LogFormat, "log-format", s.LogFormat, "Log format: console|json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if s.ConfigPath != "" {
			fileCfg, err := config.Load(s.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", s.ConfigPath, err)
			}
			s.merge(cmd, fileCfg)
		}
		s.log = newLogger(s.LogLevel, s.LogFormat)
		return nil
	}

	root.AddCommand(
		newConvertCmd(s),
		newDownloadCmd(s),
		newCheckCmd(s),
		newLayersCmd(s),
		newListCmd(s),
		newRunCmd(s),
		newToolchainCmd(s),
		newServeCmd(s),
		newCompletionCmd(root),
	)
	return root
}

// signalContext rebinds the command context to one cancelled on
// SIGINT/SIGTERM and returns the release func.
func signalContext(cmd *cobra.Command) func() {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cmd.SetContext(ctx)
	return stop
}

func newConvertCmd(s *settings) *cobra.Command {
	var req types.ConvertRequest
	cmd := &cobra.Command{
		Use:     "convert <model>",
		Short:   "Download a checkpoint and convert it to GGUF",
		Example: "  ggufctl convert llama-3b\n  ggufctl convert mlx-community/DeepSeek-R1-Distill-Qwen-32B --run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := signalContext(cmd)
			defer stop()
			req.Model = args[0]
			pipe, cleanup, err := buildPipeline(s)
			if err != nil {
				return err
			}
			defer cleanup()
			artifact, err := pipe.Execute(cmd.Context(), req, func(stage string) {
				s.log.Info().Str("stage", stage).Msg("stage started")
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), artifact)
			return nil
		},
	}
	cmd.Flags().BoolVar(&req.SkipDownload, "skip-download", false, "Skip the download stage")
	cmd.Flags().BoolVar(&req.SkipConversion, "skip-conversion", false, "Skip conversion, just report the artifact path")
	cmd.Flags().BoolVar(&req.RunModel, "run", false, "Run the converted model with llama-cli afterwards")
	cmd.Flags().StringVar(&req.Outtype, "outtype", "", "Converter --outtype (default: detected from hub metadata)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Proceed even when the checkpoint looks pre-quantized")
	return cmd
}

func newDownloadCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:     "download <model>",
		Short:   "Download a checkpoint from the Hugging Face Hub",
		Example: "  ggufctl download mlx-deepseek-32b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := signalContext(cmd)
			defer stop()
			repo := catalog.Resolve(args[0])
			modelsDir, err := expandModelsDir(s)
			if err != nil {
				return err
			}
			client := newHubClient(s)
			dest := hub.LocalDir(modelsDir, repo)
			if err := client.Download(cmd.Context(), repo, dest, func(e hub.ProgressEvent) {
				s.log.Info().Str("event", e.Event).Str("path", e.Path).Int64("bytes", e.Bytes).Msg("download")
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
}

func newCheckCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:     "check <model>",
		Short:   "Inspect hub metadata and report whether conversion can succeed",
		Example: "  ggufctl check mlx-community/Llama-3.2-3B-Instruct",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := signalContext(cmd)
			defer stop()
			repo := catalog.Resolve(args[0])
			meta, err := newHubClient(s).FetchMeta(cmd.Context(), repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "repo:          %s\n", repo)
			fmt.Fprintf(out, "model type:    %s\n", meta.ModelType)
			fmt.Fprintf(out, "quantization:  %s\n", meta.Quantization)
			if meta.ParamsB > 0 {
				fmt.Fprintf(out, "parameters:    %.1fB\n", meta.ParamsB)
			}
			fmt.Fprintf(out, "gpu layers:    %d\n", catalog.LayersForName(repo))
			if err := preflight.CheckMeta(meta); err != nil {
				return err
			}
			fmt.Fprintln(out, "convertible:   yes")
			return nil
		},
	}
}

func newLayersCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:     "layers <model-or-size>",
		Short:   "Print the recommended --n-gpu-layers value",
		Example: "  ggufctl layers 32B\n  ggufctl layers llama-3b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := catalog.Resolve(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), catalog.LayersForName(ref))
			return nil
		},
	}
}

func newListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List GGUF artifacts under the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.NewGGUFScanner().Scan(s.cfg.ModelsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, "no GGUF artifacts found")
				return nil
			}
			for _, m := range models {
				fmt.Fprintf(out, "%-50s %-8s %10d  %s\n", m.ID, m.Quant, m.SizeBytes, m.Path)
			}
			return nil
		},
	}
}

func newRunCmd(s *settings) *cobra.Command {
	var opts runner.Opts
	cmd := &cobra.Command{
		Use:     "run <gguf-path-or-model>",
		Short:   "Run llama-cli over a converted GGUF artifact",
		Example: "  ggufctl run ~/models/llm/Llama-3.2-3B-Instruct/Llama-3.2-3B-Instruct-F16.gguf\n  ggufctl run llama-3b",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := signalContext(cmd)
			defer stop()
			ggufPath, err := resolveArtifact(s, args[0])
			if err != nil {
				return err
			}
			tc := newCheckout(s)
			r := runner.New(tc.LlamaCLI(), s.log)
			return r.Run(cmd.Context(), ggufPath, opts, func(l string) {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			})
		},
	}
	cmd.Flags().IntVar(&opts.GPULayers, "gpu-layers", 0, "--n-gpu-layers value (default: derived from the artifact name)")
	cmd.Flags().IntVar(&opts.CtxSize, "run-ctx-size", 0, "--ctx-size value for this run")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "Prompt to feed llama-cli")
	return cmd
}

func newToolchainCmd(s *settings) *cobra.Command {
	tcCmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Manage the llama.cpp checkout",
	}
	tcCmd.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Clone or update llama.cpp and pin it to master",
			RunE: func(cmd *cobra.Command, args []string) error {
				stop := signalContext(cmd)
				defer stop()
				return newCheckout(s).Sync(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "build",
			Short: "Build the llama.cpp release binaries",
			RunE: func(cmd *cobra.Command, args []string) error {
				stop := signalContext(cmd)
				defer stop()
				return newCheckout(s).Build(cmd.Context())
			},
		},
	)
	return tcCmd
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	completion := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completion.AddCommand(
		&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }},
		&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }},
		&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }},
	)
	return completion
}
