package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cosmo/internal/audio"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com/v2"
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxPolls     = 40
)

// ErrTranscriptFailed reports a job the service marked as failed.
var ErrTranscriptFailed = errors.New("transcription failed")

// Remote uploads clips to an AssemblyAI-style endpoint and polls the job
// until it completes.
type Remote struct {
	http    *http.Client
	baseURL string
	apiKey  string

	pollInterval time.Duration
	maxPolls     int
	sleep        func(time.Duration)
}

func NewRemote(hc *http.Client, apiKey string) *Remote {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Remote{
		http:         hc,
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		sleep:        time.Sleep,
	}
}

// SetBaseURL points the client at a different endpoint. Used by tests.
func (r *Remote) SetBaseURL(u string) { r.baseURL = u }

func (r *Remote) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	data, err := os.ReadFile(clip.Path)
	if err != nil {
		return "", fmt.Errorf("read clip: %w", err)
	}

	uploadURL, err := r.upload(ctx, data)
	if err != nil {
		return "", err
	}
	jobID, err := r.submit(ctx, uploadURL)
	if err != nil {
		return "", err
	}
	return r.poll(ctx, jobID)
}

func (r *Remote) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/upload",
		bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("authorization", r.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload clip: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: unexpected status %s", resp.Status)
	}

	var body struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if body.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return body.UploadURL, nil
}

func (r *Remote) submit(ctx context.Context, audioURL string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"audio_url": audioURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transcript",
		bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("authorization", r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit: unexpected status %s", resp.Status)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if body.ID == "" {
		return "", errors.New("transcript response missing id")
	}
	return body.ID, nil
}

func (r *Remote) poll(ctx context.Context, jobID string) (string, error) {
	for i := 0; i < r.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			r.baseURL+"/transcript/"+jobID, nil)
		if err != nil {
			return "", fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("authorization", r.apiKey)

		resp, err := r.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("poll transcript: %w", err)
		}

		var body struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("decode poll response: %w", err)
		}

		switch body.Status {
		case "completed":
			return body.Text, nil
		case "error":
			return "", fmt.Errorf("%w: %s", ErrTranscriptFailed, body.Error)
		}
		r.sleep(r.pollInterval)
	}
	return "", fmt.Errorf("%w: job %s did not finish", ErrTranscriptFailed, jobID)
}
