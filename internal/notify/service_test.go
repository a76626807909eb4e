package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bindery/internal/config"
	"bindery/internal/jobs"
	"bindery/internal/notify"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notify.NewService(&cfg)
	job := &jobs.Job{ID: "job-1", Status: jobs.StatusComplete}
	if err := svc.JobComplete(context.Background(), job); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	complete := &jobs.Job{
		ID:     "job-1",
		Status: jobs.StatusComplete,
		Input: jobs.InputMeta{
			Filename:      "comic.cbz",
			DeviceProfile: "KPW5",
		},
		Output: jobs.OutputMeta{Filename: "comic.mobi"},
	}
	failed := &jobs.Job{
		ID:     "job-2",
		Status: jobs.StatusError,
		Input:  jobs.InputMeta{Filename: "broken.pdf", DeviceProfile: "KPW5"},
		Failure: &jobs.Failure{
			Kind:    jobs.FailureKindConversion,
			Message: "conversion failed",
		},
	}

	tests := []struct {
		name           string
		publish        func(svc notify.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "job complete",
			publish: func(svc notify.Service) error {
				return svc.JobComplete(context.Background(), complete)
			},
			expectTitle:   "Bindery - Conversion Complete",
			expectMessage: "Ready for download: comic.mobi (Kindle Paperwhite 5/Signature Edition)",
			expectTags:    "bindery,job,completed",
		},
		{
			name: "job failed",
			publish: func(svc notify.Service) error {
				return svc.JobFailed(context.Background(), failed)
			},
			expectTitle:    "Bindery - Conversion Failed",
			expectMessage:  "broken.pdf: conversion failed",
			expectTags:     "bindery,job,error",
			expectPriority: "high",
		},
		{
			name: "test notification",
			publish: func(svc notify.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Bindery - Test",
			expectMessage:  "Notification system test",
			expectTags:     "bindery,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Complete = true
			cfg.Notifications.Errors = true

			svc := notify.NewService(&cfg)
			if err := tc.publish(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Complete = false
	cfg.Notifications.Errors = false

	svc := notify.NewService(&cfg)
	job := &jobs.Job{ID: "job-1", Input: jobs.InputMeta{Filename: "doc.epub"}}
	if err := svc.JobComplete(context.Background(), job); err != nil {
		t.Fatalf("expected suppressed complete notification to return nil, got %v", err)
	}
	if err := svc.JobFailed(context.Background(), job); err != nil {
		t.Fatalf("expected suppressed error notification to return nil, got %v", err)
	}
}
