package main

import (
	"strings"
	"testing"

	"bindery/internal/api"
)

func TestFormatSize(t *testing.T) {
	if got := formatSize(0); got != "-" {
		t.Fatalf("expected dash for zero size, got %q", got)
	}
	if got := formatSize(4 * 1024 * 1024); got != "4.0 MiB" {
		t.Fatalf("unexpected size rendering: %q", got)
	}
}

func TestDescribeProgressByPhase(t *testing.T) {
	upload := api.Job{
		Status: "UPLOADING",
		Upload: &api.UploadProgress{
			BytesTransferred: 512 * 1024,
			BytesTotal:       1024 * 1024,
			EtaSeconds:       30,
			HasEta:           true,
		},
	}
	got := describeProgress(upload)
	requireContains(t, got, "50%")
	requireContains(t, got, "~30s left")

	withheld := upload
	withheld.Upload = &api.UploadProgress{BytesTransferred: 1, BytesTotal: 1024}
	if strings.Contains(describeProgress(withheld), "left") {
		t.Fatal("expected no ETA text while the estimate is withheld")
	}

	queued := api.Job{Status: "QUEUED"}
	if got := describeProgress(queued); got != "waiting for a worker" {
		t.Fatalf("unexpected queued text: %q", got)
	}

	processing := api.Job{
		Status:     "PROCESSING",
		Processing: &api.ProcessingProgress{Percent: 42, RemainingSeconds: 90},
	}
	got = describeProgress(processing)
	requireContains(t, got, "42%")
	requireContains(t, got, "1m30s")

	complete := api.Job{
		Status: "COMPLETE",
		Output: &api.Output{Filename: "novel.mobi", Size: 2048},
	}
	requireContains(t, describeProgress(complete), "novel.mobi")

	failed := api.Job{
		Status:  "ERROR",
		Failure: &api.Failure{Kind: "conversion", Message: "conversion failed"},
	}
	if got := describeProgress(failed); got != "conversion failed" {
		t.Fatalf("unexpected failure text: %q", got)
	}
}
