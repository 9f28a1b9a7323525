package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// BaseURL is the ElevenLabs API base URL
	BaseURL = "https://api.elevenlabs.io"
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 30 * time.Second
	// DefaultUploadTimeout is the timeout for knowledge-base file uploads
	DefaultUploadTimeout = 2 * time.Minute
)

// Client handles all ElevenLabs Conversational AI API interactions
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client // For regular API calls
	uploadClient *http.Client // For file uploads (longer timeout)
	retryConfig  RetryConfig
	rateLimiter  *RateLimiter
}

// Config holds configuration for the ElevenLabs client
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	UploadTimeout     time.Duration
	RetryConfig       *RetryConfig       // Optional custom retry config
	RateLimiterConfig *RateLimiterConfig // Optional rate limiter config
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (default: 2)
	InitialBackoff time.Duration // Initial backoff duration (default: 500ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// NewClient creates a new ElevenLabs API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = DefaultUploadTimeout
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	rateLimiterConfig := DefaultRateLimiterConfig()
	if config.RateLimiterConfig != nil {
		rateLimiterConfig = *config.RateLimiterConfig
	}

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		httpClient:   &http.Client{Timeout: config.Timeout},
		uploadClient: &http.Client{Timeout: config.UploadTimeout},
		retryConfig:  retryConfig,
		rateLimiter:  NewRateLimiter(rateLimiterConfig),
	}
}

// IsRetryableStatusCode checks if an HTTP status code should trigger a retry
// Retryable codes: 408 (Timeout), 429 (Rate Limit), 5xx (Server errors)
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == 408 || statusCode == 429 || statusCode >= 500
}

// CalculateBackoff returns the backoff duration for a given retry attempt
// Uses exponential backoff: initialBackoff * 2^attempt, capped at maxBackoff
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff > config.MaxBackoff {
		return config.MaxBackoff
	}
	return backoff
}

// ParseRetryAfter extracts the retry-after header value from a response
// Returns 0 if the header is not present or cannot be parsed
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// doRequest performs a JSON HTTP request with rate limiting and retries
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var jsonData []byte
	if body != nil {
		var err error
		jsonData, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := CalculateBackoff(attempt-1, c.retryConfig)
			// A Retry-After from the API overrides the computed backoff
			// when it asks for a longer wait.
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > backoff {
				backoff = apiErr.RetryAfter
				if backoff > c.retryConfig.MaxBackoff {
					backoff = c.retryConfig.MaxBackoff
				}
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait cancelled: %w", err)
		}

		var reqBody io.Reader
		if jsonData != nil {
			reqBody = bytes.NewReader(jsonData)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("xi-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if jsonData != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		retryable, err := c.execute(req, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

// execute runs a prepared request and decodes the response, reporting
// whether a failure is worth retrying.
func (c *Client) execute(req *http.Request, result interface{}) (retryable bool, err error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == 429 {
			c.rateLimiter.SetBackoffMultiplier(2.0)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, RetryAfter: ParseRetryAfter(resp)}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message() == "" {
			apiErr.Detail.Message = string(respBody)
		}
		return IsRetryableStatusCode(resp.StatusCode), apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return false, nil
}

func decodeJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError represents an ElevenLabs API error response
type APIError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
	StatusCode int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
}

// Message returns the error message from the response body
func (e *APIError) Message() string {
	return e.Detail.Message
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("ElevenLabs API error (status %d): %s", e.StatusCode, e.Detail.Message)
}

// HealthCheck verifies the client can reach the ElevenLabs API
func (c *Client) HealthCheck(ctx context.Context) error {
	var result struct {
		SubscriptionTier string `json:"tier"`
	}
	return c.doRequest(ctx, "GET", "/v1/user/subscription", nil, &result)
}
