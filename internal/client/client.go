package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bindery/internal/api"
)

// Client talks to the daemon's HTTP API.
type Client struct {
	base string
	http *http.Client
}

// New builds a client for the given bind address or base URL.
func New(address string) *Client {
	base := strings.TrimSpace(address)
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.get(ctx, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob registers a job.
func (c *Client) CreateJob(ctx context.Context, req api.CreateJobRequest) (*api.Job, error) {
	var out api.JobResponse
	if err := c.postJSON(ctx, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Upload streams a local file to an UPLOADING job.
func (c *Client) Upload(ctx context.Context, jobID, path string) (*api.Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/api/jobs/"+url.PathEscape(jobID)+"/upload", file)
	if err != nil {
		return nil, err
	}
	if info, err := file.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	var out api.JobResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Submit creates a job for a local file and uploads it in one step.
func (c *Client) Submit(ctx context.Context, path, deviceProfile string, options map[string]string) (*api.Job, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	created, err := c.CreateJob(ctx, api.CreateJobRequest{
		Filename:      filepath.Base(path),
		Size:          info.Size(),
		DeviceProfile: deviceProfile,
		Options:       options,
	})
	if err != nil {
		return nil, err
	}
	return c.Upload(ctx, created.ID, path)
}

// ActiveJobs returns the live queue view.
func (c *Client) ActiveJobs(ctx context.Context) ([]api.Job, error) {
	var out api.JobListResponse
	if err := c.get(ctx, "/api/jobs", &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// History returns finished jobs, newest first.
func (c *Client) History(ctx context.Context, limit, offset int, includeDismissed bool) ([]api.Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	if includeDismissed {
		query.Set("include_dismissed", "true")
	}
	path := "/api/jobs/history"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.JobListResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Job retrieves a single job.
func (c *Client) Job(ctx context.Context, id string) (*api.Job, error) {
	var out api.JobResponse
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Cancel requests cancellation.
func (c *Client) Cancel(ctx context.Context, id string) (*api.Job, error) {
	var out api.JobResponse
	if err := c.postJSON(ctx, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Dismiss hides a finished job from the queue view.
func (c *Client) Dismiss(ctx context.Context, id string) (*api.Job, error) {
	var out api.JobResponse
	if err := c.postJSON(ctx, "/api/jobs/"+url.PathEscape(id)+"/dismiss", nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Download fetches a COMPLETE job's artifact into destDir and returns the
// written path.
func (c *Client) Download(ctx context.Context, id, destDir string) (string, error) {
	job, err := c.Job(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Output == nil || job.Output.Filename == "" {
		return "", fmt.Errorf("job %s has no downloadable artifact", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/jobs/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, filepath.Base(job.Output.Filename))
	file, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		_ = os.Remove(dest)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// Logs fetches daemon log lines. Pass offset -1 for the last limit lines and
// the returned offset on subsequent polls.
func (c *Client) Logs(ctx context.Context, offset int64, limit int) (*api.LogsResponse, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.LogsResponse
	if err := c.get(ctx, "/api/logs?"+query.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profiles returns the device profile catalog.
func (c *Client) Profiles(ctx context.Context) ([]api.Profile, error) {
	var out api.ProfilesResponse
	if err := c.get(ctx, "/api/profiles", &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
