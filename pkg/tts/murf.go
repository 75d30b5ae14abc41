package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voxalabs/voxa/internal/httpc"
)

const (
	murfBaseURL      = "https://api.murf.ai/v1"
	providerMurf     = "murf"
	murfMaxTextChars = 3000
)

// Murf is the REST synthesis provider, used as the non-streaming fallback
// when streaming synthesis produces no audio.
type Murf struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewMurf creates a new Murf REST provider.
func NewMurf(opts ...Option) (*Murf, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &Murf{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts.murf"),
	}, nil
}

// Synthesize converts text to a complete audio buffer.
func (m *Murf) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerMurf, ErrEmptyText)
	}
	if len(text) > murfMaxTextChars {
		text = text[:murfMaxTextChars]
	}

	start := time.Now()

	payload := map[string]interface{}{
		"voiceId":        m.config.VoiceID,
		"text":           text,
		"format":         string(m.config.OutputFormat),
		"sampleRate":     m.config.SampleRate,
		"channelType":    m.config.ChannelType,
		"encodeAsBase64": true,
	}
	if m.config.VoiceSettings.Style != "" {
		payload["style"] = m.config.VoiceSettings.Style
	}
	if m.config.VoiceSettings.Rate != 0 {
		payload["rate"] = m.config.VoiceSettings.Rate
	}
	if m.config.VoiceSettings.Pitch != 0 {
		payload["pitch"] = m.config.VoiceSettings.Pitch
	}

	resp, err := m.post(ctx, "/speech/generate", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.parseError(resp)
	}

	var result struct {
		EncodedAudio         string  `json:"encodedAudio"`
		AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerMurf, fmt.Errorf("decode response: %w", err))
	}
	if result.EncodedAudio == "" {
		return nil, WrapError(providerMurf, fmt.Errorf("no audio returned"))
	}

	audio, err := base64.StdEncoding.DecodeString(result.EncodedAudio)
	if err != nil {
		return nil, WrapError(providerMurf, fmt.Errorf("decode audio: %w", err))
	}

	m.logger.Debug("synthesis complete",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   m.config.OutputFormat,
			SampleRate: m.config.SampleRate,
			Channels:   1,
		},
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health checks API connectivity and key validity.
func (m *Murf) Health(ctx context.Context) error {
	url := m.baseURL() + "/speech/voices"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return WrapError(providerMurf, err)
	}
	req.Header.Set("api-key", m.config.APIKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return WrapError(providerMurf, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return m.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (m *Murf) Close() error {
	m.http.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (m *Murf) VoiceID() string {
	return m.config.VoiceID
}

func (m *Murf) baseURL() string {
	if m.config.BaseURL != "" {
		return strings.TrimSuffix(m.config.BaseURL, "/")
	}
	return murfBaseURL
}

// post makes a POST request with retry on retryable failures.
func (m *Murf) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerMurf, fmt.Errorf("marshal payload: %w", err))
	}

	url := m.baseURL() + path

	var lastErr error
	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerMurf, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", m.config.APIKey)

		resp, err := m.http.Do(req)
		if err != nil {
			lastErr = WrapError(providerMurf, err)
			m.logger.Warn("request failed, retrying",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = m.parseError(resp)
			m.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (m *Murf) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var errResp struct {
		ErrorMessage string `json:"errorMessage"`
		ErrorCode    string `json:"errorCode"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.ErrorMessage != "" {
		message = errResp.ErrorMessage
		code = errResp.ErrorCode
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerMurf,
	}
}

// Verify Murf implements Provider at compile time.
var _ Provider = (*Murf)(nil)
