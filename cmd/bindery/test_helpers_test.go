package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"bindery/internal/hub"
	"bindery/internal/jobs"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
	"bindery/internal/notify"
	"bindery/internal/server"
	"bindery/internal/testsupport"
)

type fixedEstimator struct{}

func (fixedEstimator) Estimate(jobs.InputMeta) time.Duration { return time.Minute }

type cliTestEnv struct {
	controller *lifecycle.Controller
	address    string
	outputDir  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	repo := testsupport.NewRepository(t, cfg)
	broadcast := hub.New(repo.ListActive, 0, logging.NewNop())
	controller := lifecycle.New(repo, broadcast, notify.NewNop(), fixedEstimator{}, cfg, logging.NewNop())

	srv := server.New(cfg, controller, broadcast, repo, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})

	return &cliTestEnv{
		controller: controller,
		address:    srv.Addr(),
		outputDir:  cfg.Paths.OutputDir,
	}
}

func runCLI(t *testing.T, address string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--address", address}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
