package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"bindery/internal/api"
)

func formatSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func formatWhen(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}

// describeProgress renders a one-line progress summary appropriate to the
// job's phase.
func describeProgress(job api.Job) string {
	switch job.Status {
	case "UPLOADING":
		if job.Upload == nil || job.Upload.BytesTotal <= 0 {
			return "uploading"
		}
		percent := float64(job.Upload.BytesTransferred) / float64(job.Upload.BytesTotal) * 100
		summary := fmt.Sprintf("uploading %s of %s (%.0f%%)",
			formatSize(job.Upload.BytesTransferred),
			formatSize(job.Upload.BytesTotal),
			percent)
		if job.Upload.HasEta {
			summary += fmt.Sprintf(", ~%s left", (time.Duration(job.Upload.EtaSeconds) * time.Second).String())
		}
		return summary
	case "QUEUED":
		return "waiting for a worker"
	case "PROCESSING":
		if job.Processing == nil {
			return "converting"
		}
		return fmt.Sprintf("converting %d%%, ~%s left",
			job.Processing.Percent,
			(time.Duration(job.Processing.RemainingSeconds) * time.Second).String())
	case "COMPLETE":
		if job.Output != nil {
			return fmt.Sprintf("ready: %s (%s)", job.Output.Filename, formatSize(job.Output.Size))
		}
		return "ready"
	case "ERROR":
		if job.Failure != nil {
			return job.Failure.Message
		}
		return "failed"
	case "CANCELLED":
		return "cancelled"
	default:
		return strings.ToLower(job.Status)
	}
}

func jobRows(items []api.Job) [][]string {
	rows := make([][]string, 0, len(items))
	for _, job := range items {
		rows = append(rows, []string{
			job.ID,
			job.Filename,
			job.DeviceProfile,
			job.Status,
			describeProgress(job),
			formatWhen(job.UpdatedAt),
		})
	}
	return rows
}

var jobTableHeaders = []string{"ID", "FILE", "PROFILE", "STATUS", "PROGRESS", "UPDATED"}

var jobTableAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
