package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/metrics"
	"github.com/alkoleft/naparnik-mcp/internal/session"
	"github.com/klauspost/compress/gzhttp"
)

const (
	DefaultBaseURL    = "https://code.1c.ai"
	DefaultTimeout    = 30 * time.Second
	DefaultUILanguage = "russian"

	conversationsPath = "/chat_api/v1/conversations/"
	maxExcerptSize    = 512
)

type naparnikOptions struct {
	baseURL    string
	token      string
	timeout    time.Duration
	uiLanguage string
	httpClient *http.Client
}

type NaparnikOption func(*naparnikOptions)

// NaparnikClient creates and reuses one upstream conversation and reduces the
// streamed reply of each message to a single answer.
type NaparnikClient struct {
	options  naparnikOptions
	client   *http.Client
	sessions *session.Manager
	log      *slog.Logger
}

type createSessionRequest struct {
	ToolName            string `json:"tool_name"`
	UILanguage          string `json:"ui_language"`
	ProgrammingLanguage string `json:"programming_language"`
	ScriptLanguage      string `json:"script_language"`
}

type createSessionResponse struct {
	UUID string `json:"uuid"`
}

type sendMessageRequest struct {
	ParentUUID  *string     `json:"parent_uuid"`
	ToolContent toolContent `json:"tool_content"`
}

type toolContent struct {
	Instruction string `json:"instruction"`
}

func NewNaparnikClient(sessions *session.Manager, opts ...NaparnikOption) *NaparnikClient {
	options := naparnikOptions{
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		uiLanguage: DefaultUILanguage,
	}
	for _, o := range opts {
		o(&options)
	}
	options.baseURL = strings.TrimRight(options.baseURL, "/")
	if options.timeout <= 0 {
		options.timeout = DefaultTimeout
	}

	client := options.httpClient
	if client == nil {
		client = &http.Client{Transport: gzhttp.Transport(http.DefaultTransport)}
	}

	log := slog.With("service", "naparnik", "base_url", options.baseURL)
	if options.token == "" {
		log.Warn("No upstream token configured, requests will be sent without credentials")
	}

	return &NaparnikClient{
		options:  options,
		client:   client,
		sessions: sessions,
		log:      log,
	}
}

// EnsureSession returns the shared conversation handle, creating one when
// none exists or forceNew is set. Waiting behind another caller's create
// counts against the same timeout as the create itself.
func (c *NaparnikClient) EnsureSession(ctx context.Context, forceNew bool) (session.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.timeout)
	defer cancel()

	handle, err := c.sessions.Ensure(ctx, forceNew, c.createSession)
	if errors.Is(err, context.DeadlineExceeded) {
		return "", c.classify(ctx, err)
	}
	return handle, err
}

// Ask posts question to the shared conversation and returns the resolved answer.
// A failed send leaves the held session untouched.
func (c *NaparnikClient) Ask(ctx context.Context, question string, newSession bool) (string, error) {
	handle, err := c.EnsureSession(ctx, newSession)
	if err != nil {
		return "", err
	}
	return c.sendMessage(ctx, handle, question)
}

func (c *NaparnikClient) createSession(ctx context.Context) (handle session.Handle, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("create_session", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			c.log.Error("Failed to create upstream session", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.options.timeout)
	defer cancel()

	body, err := json.Marshal(createSessionRequest{
		ToolName:   "custom",
		UILanguage: c.options.uiLanguage,
	})
	if err != nil {
		return "", &SessionCreationError{Err: err}
	}

	req, err := c.newRequest(ctx, conversationsPath, body)
	if err != nil {
		return "", &SessionCreationError{Err: err}
	}
	req.Header.Set("Session-Id", "")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &SessionCreationError{Err: c.classify(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SessionCreationError{Status: resp.StatusCode, Reason: readExcerpt(resp.Body)}
	}

	var payload createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &SessionCreationError{Err: c.classify(ctx, fmt.Errorf("decode response: %w", err))}
	}
	if payload.UUID == "" {
		return "", &SessionCreationError{Reason: "response has no session identifier"}
	}

	metrics.SessionsCreated.Inc()
	return session.Handle(payload.UUID), nil
}

func (c *NaparnikClient) sendMessage(ctx context.Context, handle session.Handle, question string) (answer string, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("send_message", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			c.log.Error("Failed to send message", "session_id", handle, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.options.timeout)
	defer cancel()

	body, err := json.Marshal(sendMessageRequest{
		ToolContent: toolContent{Instruction: question},
	})
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, conversationsPath+url.PathEscape(handle.String())+"/messages", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	c.log.Debug("Sending message", "session_id", handle, "question_length", len(question))
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", c.classify(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamHTTPError{Status: resp.StatusCode, Excerpt: readExcerpt(resp.Body)}
	}

	reader := NewEventReader(resp.Body)
	var acc Accumulator
	for event := range reader.Events() {
		if !acc.Add(event) {
			break
		}
	}
	if !acc.Done() {
		if err := reader.Err(); err != nil {
			return "", fmt.Errorf("read event stream: %w", c.classify(ctx, err))
		}
	}

	c.log.Debug("Received answer", "session_id", handle, "answer_length", len(acc.Text()), "finished", acc.Done())
	return acc.Result(), nil
}

func (c *NaparnikClient) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Charset", "utf-8")
	req.Header.Set("Accept-Language", "ru-ru,en-us;q=0.8,en;q=0.7")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Origin", c.options.baseURL)
	req.Header.Set("Referer", c.options.baseURL+"/chat/")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	if c.options.token != "" {
		req.Header.Set("Authorization", c.options.token)
		req.Header.Set("X-API-Key", c.options.token)
		req.Header.Set("X-Auth-Token", c.options.token)
	}
	return req, nil
}

// classify turns deadline failures into ErrUpstreamTimeout.
func (c *NaparnikClient) classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s", ErrUpstreamTimeout, c.options.timeout)
	}
	return err
}

func readExcerpt(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxExcerptSize))
	return strings.TrimSpace(string(data))
}

func WithBaseURL(baseURL string) NaparnikOption {
	return func(options *naparnikOptions) {
		options.baseURL = baseURL
	}
}

func WithToken(token string) NaparnikOption {
	return func(options *naparnikOptions) {
		options.token = token
	}
}

func WithTimeout(timeout time.Duration) NaparnikOption {
	return func(options *naparnikOptions) {
		options.timeout = timeout
	}
}

func WithUILanguage(language string) NaparnikOption {
	return func(options *naparnikOptions) {
		if language != "" {
			options.uiLanguage = language
		}
	}
}

// WithHTTPClient replaces the default compressing client.
func WithHTTPClient(client *http.Client) NaparnikOption {
	return func(options *naparnikOptions) {
		options.httpClient = client
	}
}
