package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/codecrack-oj/apiserver/config"
	"github.com/codecrack-oj/apiserver/types"
)

const (
	submitMaxRetries = 2 // 3 attempts total
	pollInitialWait  = 500 * time.Millisecond
	pollMaxWait      = 2 * time.Second
)

// Client is the protocol adapter to the external execution backend.
// The backend is asynchronous: submitting a unit of work returns a token
// immediately and the result must be polled until it is terminal.
// Execute hides that behind a single blocking call.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	execDeadline time.Duration
	logger       *slog.Logger
}

// NewClient constructs a Client from config. The backend base URL and
// credentials are explicit configuration; nothing is read from ambient
// global state.
func NewClient(cfg config.JudgeConfig) *Client {
	execDeadline := cfg.ExecDeadline
	if execDeadline <= 0 {
		execDeadline = 20 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		execDeadline: execDeadline,
		logger:       slog.Default().With("component", "judge"),
	}
}

// submissionPayload is the backend's wire format for one execution.
type submissionPayload struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimit    int     `json:"memory_limit,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// submissionDetails is the backend's poll response. Time is reported as
// a decimal string in seconds and memory as kilobytes.
type submissionDetails struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
}

// Submit sends one execution request to the backend and returns its
// token. Transient transport failures, 5xx responses, and malformed
// bodies are retried with exponential backoff up to three attempts.
func (c *Client) Submit(ctx context.Context, req types.ExecutionRequest) (string, error) {
	languageID, ok := LanguageID(req.Language)
	if !ok {
		return "", fmt.Errorf("unsupported language %q", req.Language)
	}

	payload := submissionPayload{
		SourceCode:     req.SourceCode,
		LanguageID:     languageID,
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
		CPUTimeLimit:   req.TimeLimitSeconds,
		MemoryLimit:    req.MemoryLimitKB,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}

	operation := func() (string, error) {
		return c.postSubmission(ctx, body)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), submitMaxRetries), ctx)
	token, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (c *Client) postSubmission(ctx context.Context, body []byte) (string, error) {
	url := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		// 4xx means the request itself is bad; retrying cannot help.
		return "", backoff.Permanent(fmt.Errorf("backend rejected submission: %d", resp.StatusCode))
	}

	var token tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if token.Token == "" {
		return "", errors.New("backend returned empty token")
	}
	return token.Token, nil
}

// Poll fetches the current state of a previously submitted execution.
// done is false while the backend still reports the work as queued or
// processing.
func (c *Client) Poll(ctx context.Context, token string) (types.ExecutionResult, bool, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=false", c.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.ExecutionResult{}, false, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.ExecutionResult{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ExecutionResult{}, false, fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	var details submissionDetails
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&details); err != nil {
		return types.ExecutionResult{}, false, fmt.Errorf("decode submission details: %w", err)
	}

	if details.Status.ID == backendStatusInQueue || details.Status.ID == backendStatusProcessing {
		return types.ExecutionResult{}, false, nil
	}
	return normalizeDetails(details), true, nil
}

// Execute submits one request and polls until it is terminal or the
// per-call deadline expires. It never returns a transport error: any
// failure to obtain a terminal result is reported as StatusJudgeError,
// so callers treat "could not talk to the judge" exactly like any other
// failed test.
func (c *Client) Execute(ctx context.Context, req types.ExecutionRequest) types.ExecutionResult {
	ctx, cancel := context.WithTimeout(ctx, c.execDeadline)
	defer cancel()

	token, err := c.Submit(ctx, req)
	if err != nil {
		c.logger.Warn("submit failed", "error", err)
		return judgeErrorResult()
	}

	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = pollInitialWait
	wait.MaxInterval = pollMaxWait
	wait.MaxElapsedTime = 0 // bounded by ctx, not by the backoff policy

	for {
		result, done, err := c.Poll(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Warn("execution deadline expired", "token", token)
				return judgeErrorResult()
			}
			// Poll failures are transient until the deadline says otherwise.
			c.logger.Warn("poll failed", "token", token, "error", err)
		} else if done {
			return classifyMemory(result, req)
		}

		select {
		case <-ctx.Done():
			c.logger.Warn("execution deadline expired", "token", token)
			return judgeErrorResult()
		case <-time.After(wait.NextBackOff()):
		}
	}
}

func normalizeDetails(details submissionDetails) types.ExecutionResult {
	result := types.ExecutionResult{
		Status: statusFromBackend(details.Status.ID),
	}
	if details.Stdout != nil {
		result.Stdout = *details.Stdout
	}
	if details.Stderr != nil {
		result.Stderr = *details.Stderr
	}
	if details.CompileOutput != nil {
		result.CompileError = *details.CompileOutput
	}
	if details.Time != nil {
		if seconds, err := strconv.ParseFloat(*details.Time, 64); err == nil {
			result.RuntimeSeconds = seconds
		}
	}
	if details.Memory != nil {
		result.MemoryKB = *details.Memory
	}
	return result
}

// classifyMemory refines a runtime error into a memory-limit verdict
// when the backend's measured memory reached the request's limit. The
// backend kills over-limit programs with a signal and has no dedicated
// status for it.
func classifyMemory(result types.ExecutionResult, req types.ExecutionRequest) types.ExecutionResult {
	if result.Status == types.StatusRuntimeError &&
		req.MemoryLimitKB > 0 && result.MemoryKB >= req.MemoryLimitKB {
		result.Status = types.StatusMemoryLimitExceeded
	}
	return result
}

func judgeErrorResult() types.ExecutionResult {
	return types.ExecutionResult{Status: types.StatusJudgeError}
}
