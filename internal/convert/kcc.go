package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"bindery/internal/jobs"
	"bindery/internal/logging"
)

// KCC invokes the kcc-c2e command-line converter.
type KCC struct {
	binary        string
	extraArgs     []string
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewKCC creates a converter around the given binary.
func NewKCC(binary string, extraArgs []string, logger *slog.Logger) *KCC {
	return &KCC{
		binary:    binary,
		extraArgs: extraArgs,
		logger:    logging.NewComponentLogger(logger, "converter"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (k *KCC) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	k.commandRunner = runner
}

// Convert runs the conversion tool and locates its artifact in the output
// directory. Tool failures surface as user-safe ConversionFailure values;
// raw tool output goes to the log only.
func (k *KCC) Convert(ctx context.Context, req Request) (Result, error) {
	if req.InputPath == "" {
		return Result{}, &jobs.ConversionFailure{Message: "no input file"}
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure output dir: %w", err)
	}

	args := buildArgs(req, k.extraArgs)
	if err := k.run(ctx, k.binary, args...); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		k.logger.Error("conversion tool failed",
			logging.String("binary", k.binary),
			logging.String("input", filepath.Base(req.InputPath)),
			logging.Error(err))
		return Result{}, &jobs.ConversionFailure{Message: "conversion failed"}
	}

	output, err := newestFile(req.OutputDir)
	if err != nil {
		k.logger.Error("conversion produced no artifact",
			logging.String("output_dir", req.OutputDir),
			logging.Error(err))
		return Result{}, &jobs.ConversionFailure{Message: "conversion produced no output"}
	}

	info, err := os.Stat(output)
	if err != nil {
		return Result{}, fmt.Errorf("stat artifact: %w", err)
	}
	return Result{OutputPath: output, OutputSize: info.Size()}, nil
}

func buildArgs(req Request, extra []string) []string {
	args := make([]string, 0, 8+2*len(req.Options))
	if req.DeviceProfile != "" {
		args = append(args, "--profile", req.DeviceProfile)
	}
	// The options bag is forwarded verbatim; only the tool interprets keys.
	for _, key := range sortedKeys(req.Options) {
		value := req.Options[key]
		switch value {
		case "", "true":
			args = append(args, "--"+key)
		case "false":
			// omitted flag
		default:
			args = append(args, "--"+key+"="+value)
		}
	}
	args = append(args, extra...)
	args = append(args, "--output", req.OutputDir, req.InputPath)
	return args
}

func sortedKeys(options jobs.Options) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (k *KCC) run(ctx context.Context, name string, args ...string) error {
	if k.commandRunner != nil {
		return k.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest     string
		newestTime int64 = -1
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod > newestTime {
			newestTime = mod
			newest = filepath.Join(dir, entry.Name())
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no files in %s", dir)
	}
	return newest, nil
}
