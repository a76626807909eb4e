package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/jobs"
)

const userAgent = "Bindery/0.1.0"

// Service defines the notification surface exposed to the lifecycle engine.
type Service interface {
	JobComplete(ctx context.Context, job *jobs.Job) error
	JobFailed(ctx context.Context, job *jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		notifyComplete: cfg.Notifications.Complete,
		notifyErrors:   cfg.Notifications.Errors,
	}
}

// NewNop returns a service that discards every notification.
func NewNop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	notifyComplete bool
	notifyErrors   bool
}

func (n *ntfyService) JobComplete(ctx context.Context, job *jobs.Job) error {
	if !n.notifyComplete || job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Output.Filename)
	if name == "" {
		name = strings.TrimSpace(job.Input.Filename)
	}
	data := payload{
		title:   "Bindery - Conversion Complete",
		message: fmt.Sprintf("Ready for download: %s (%s)", name, jobs.ProfileLabel(job.Input.DeviceProfile)),
		tags:    []string{"bindery", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) JobFailed(ctx context.Context, job *jobs.Job) error {
	if !n.notifyErrors || job == nil {
		return nil
	}
	reason := "conversion failed"
	if job.Failure != nil && strings.TrimSpace(job.Failure.Message) != "" {
		reason = strings.TrimSpace(job.Failure.Message)
	}
	data := payload{
		title:    "Bindery - Conversion Failed",
		message:  fmt.Sprintf("%s: %s", strings.TrimSpace(job.Input.Filename), reason),
		tags:     []string{"bindery", "job", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bindery - Test",
		message:  "Notification system test",
		tags:     []string{"bindery", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) JobComplete(context.Context, *jobs.Job) error { return nil }
func (noopService) JobFailed(context.Context, *jobs.Job) error   { return nil }
func (noopService) TestNotification(context.Context) error       { return nil }
