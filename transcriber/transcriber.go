// Package transcriber talks to the speech-to-text service.
package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"keytalk/log"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultTextPath = "text"

	bytesPerSecond = 16000 * 2 // 16 kHz mono S16
)

type Options struct {
	BaseURL    string
	Language   string // "" omits the parameter; "auto" asks the server to detect
	PadSeconds float64
	TextPath   string // gjson path of the transcript in the response
	Timeout    time.Duration
}

// Client sends recorded PCM to the service and returns the transcript.
type Client struct {
	client   *TracedClient
	baseURL  string
	language string
	pad      float64
	textPath string
	timeout  time.Duration
}

func New(opts Options) *Client {
	c := &Client{
		client:   NewTracedClient(),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		pad:      opts.PadSeconds,
		textPath: opts.TextPath,
		timeout:  opts.Timeout,
	}
	if c.textPath == "" {
		c.textPath = DefaultTextPath
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) transcribeURL() string {
	q := url.Values{}
	if c.language != "" {
		q.Set("language", c.language)
	}
	if c.pad > 0 {
		q.Set("pad_seconds", strconv.FormatFloat(c.pad, 'f', -1, 64))
	}
	u := c.baseURL + "/transcribe"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Transcribe returns the trimmed transcript of audio, or "" on any failure.
// Empty audio sends no request.
func (c *Client) Transcribe(ctx context.Context, audio []byte) string {
	return c.TranscribeSession(ctx, audio, "")
}

// TranscribeSession is Transcribe with a session ID attached to the
// metrics record.
func (c *Client) TranscribeSession(ctx context.Context, audio []byte, session string) string {
	if len(audio) == 0 {
		log.Debugf("no audio data to transcribe")
		return ""
	}
	log.Infof("sending %d bytes to transcription service", len(audio))

	text, err := c.request(ctx, audio, session)
	if err != nil {
		log.Errorf("transcription failed: %v", err)
		return ""
	}
	log.Infof("transcription result: %q", text)
	return text
}

func (c *Client) request(ctx context.Context, audio []byte, session string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.transcribeURL(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}

	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS: float64(len(audio)) / bytesPerSecond,
		AudioBytes:   len(audio),
		StatusCode:   resp.StatusCode,
		DNSTimeMs:    ms(resp.Metrics.DNS),
		TCPTimeMs:    ms(resp.Metrics.TCP),
		TTFBMs:       ms(resp.Metrics.TTFB),
		TotalTimeMs:  ms(resp.Metrics.Total),
		ConnReused:   resp.Metrics.ConnReused,
	}, session)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", fmt.Errorf("invalid JSON response: %s", snippet(resp.Body))
	}
	field := gjson.GetBytes(resp.Body, c.textPath)
	if !field.Exists() {
		return "", fmt.Errorf("response has no %q field: %s", c.textPath, snippet(resp.Body))
	}
	return strings.TrimSpace(field.String()), nil
}

// Status is the service's health and model state.
type Status struct {
	Healthy     bool
	Status      string
	Model       string
	ModelLoaded bool
}

// Health queries GET /health.
func (c *Client) Health(ctx context.Context) (Status, error) {
	body, err := c.get(ctx, "/health")
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Status:      gjson.GetBytes(body, "status").String(),
		ModelLoaded: gjson.GetBytes(body, "model_loaded").Bool(),
	}
	st.Healthy = st.Status == "healthy" && st.ModelLoaded
	return st, nil
}

// Info queries GET /info.
func (c *Client) Info(ctx context.Context) (Status, error) {
	body, err := c.get(ctx, "/info")
	if err != nil {
		return Status{}, err
	}
	return Status{
		Model:       gjson.GetBytes(body, "model").String(),
		ModelLoaded: gjson.GetBytes(body, "model_loaded").Bool(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.client.Get(ctx, c.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("GET %s: invalid JSON response", path)
	}
	return resp.Body, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
