package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bindery/internal/jobs"
)

const jobColumns = "id, status, filename, size, device_profile, options_json, output_filename, output_size, failure_kind, failure_message, dismissed, download_count, created_at, updated_at, queued_at, processing_at, completed_at, errored_at, cancelled_at, dismissed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*jobs.Job, error) {
	var (
		id             string
		statusStr      string
		filename       sql.NullString
		size           int64
		deviceProfile  sql.NullString
		optionsJSON    sql.NullString
		outputFilename sql.NullString
		outputSize     int64
		failureKind    sql.NullString
		failureMessage sql.NullString
		dismissed      sql.NullInt64
		downloadCount  int64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		queuedRaw      sql.NullString
		processingRaw  sql.NullString
		completedRaw   sql.NullString
		erroredRaw     sql.NullString
		cancelledRaw   sql.NullString
		dismissedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&filename,
		&size,
		&deviceProfile,
		&optionsJSON,
		&outputFilename,
		&outputSize,
		&failureKind,
		&failureMessage,
		&dismissed,
		&downloadCount,
		&createdRaw,
		&updatedRaw,
		&queuedRaw,
		&processingRaw,
		&completedRaw,
		&erroredRaw,
		&cancelledRaw,
		&dismissedRaw,
	); err != nil {
		return nil, err
	}

	job := &jobs.Job{
		ID:     id,
		Status: jobs.Status(statusStr),
		Input: jobs.InputMeta{
			Filename:      filename.String,
			Size:          size,
			DeviceProfile: deviceProfile.String,
		},
		Output: jobs.OutputMeta{
			Filename: outputFilename.String,
			Size:     outputSize,
		},
		DownloadCount: downloadCount,
	}
	if dismissed.Valid {
		job.Dismissed = dismissed.Int64 != 0
	}
	if optionsJSON.Valid && optionsJSON.String != "" {
		var opts jobs.Options
		if err := json.Unmarshal([]byte(optionsJSON.String), &opts); err != nil {
			return nil, fmt.Errorf("unmarshal options for job %s: %w", id, err)
		}
		job.Input.Options = opts
	}
	if failureKind.Valid || failureMessage.Valid {
		job.Failure = &jobs.Failure{Kind: failureKind.String, Message: failureMessage.String}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.QueuedAt = parseNullableTime(queuedRaw)
	job.ProcessingAnchor = parseNullableTime(processingRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	job.ErroredAt = parseNullableTime(erroredRaw)
	job.CancelledAt = parseNullableTime(cancelledRaw)
	job.DismissedAt = parseNullableTime(dismissedRaw)
	return job, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
