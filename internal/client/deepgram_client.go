package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/echostudy/api/internal/config"
)

const defaultAudioMimeType = "audio/mpeg"

// Transcribe errors. ErrEmptyAudio is rejected before any network call;
// ErrNoAlternative means the provider answered 2xx but the payload carried no
// parseable transcription alternative; ErrEmptyTranscript means both the
// paragraph form and the flat transcript were blank.
var (
	ErrEmptyAudio      = errors.New("audio payload is empty")
	ErrNoAlternative   = errors.New("transcription response contained no alternative")
	ErrEmptyTranscript = errors.New("transcription produced an empty transcript")
)

// TranscriptionError is a non-success HTTP response from the provider,
// carrying the upstream status and error body for the job's error text.
type TranscriptionError struct {
	StatusCode int
	Body       string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("deepgram request failed (%d): %s", e.StatusCode, e.Body)
}

// Transcriber is the interface the worker consumes; satisfied by
// DeepgramClient and by test doubles.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, opts TranscribeOptions) (*TranscriptionResult, error)
}

// TranscribeOptions overrides the per-request Deepgram parameters. Zero-value
// fields fall back to the client defaults (model from config, language from
// config, summarize v2, smart_format/paragraphs/punctuate all on).
type TranscribeOptions struct {
	Model       string
	Language    string
	Summarize   string // "off", "v2" or "conversational"
	SmartFormat *bool
	Paragraphs  *bool
	Punctuate   *bool
}

// TranscriptionResult is the normalized, strongly-typed outcome of one
// transcription call, flattened from the provider's nested response.
type TranscriptionResult struct {
	Transcript string
	RequestID  string
	Model      string
	Duration   *float64
	Confidence *float64
	Language   string
	Summary    string
}

// DeepgramClient calls the Deepgram pre-recorded transcription API. It
// performs no retries: retry granularity is the job attempt, owned by the
// claim scheduler, so each HTTP call is billed and logged as one attempt.
type DeepgramClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
}

// NewDeepgramClient creates a new Deepgram API client.
func NewDeepgramClient(cfg *config.DeepgramConfig) *DeepgramClient {
	return &DeepgramClient{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

// IsConfigured returns true if the client has valid configuration.
func (c *DeepgramClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Transcribe sends audio bytes to Deepgram and normalizes the response.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string, opts TranscribeOptions) (*TranscriptionResult, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	params := c.queryParams(opts)
	endpoint := fmt.Sprintf("%s/v1/listen?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if mimeType == "" {
		mimeType = defaultAudioMimeType
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TranscriptionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var payload deepgramResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return normalize(&payload)
}

func (c *DeepgramClient) queryParams(opts TranscribeOptions) url.Values {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	language := opts.Language
	if language == "" {
		language = c.language
	}
	summarize := opts.Summarize
	if summarize == "" {
		summarize = "v2"
	}

	params := url.Values{}
	params.Set("model", model)
	params.Set("language", language)
	if summarize != "off" {
		params.Set("summarize", summarize)
	}
	params.Set("smart_format", boolParam(opts.SmartFormat))
	params.Set("paragraphs", boolParam(opts.Paragraphs))
	params.Set("punctuate", boolParam(opts.Punctuate))
	return params
}

// boolParam renders an optional flag, defaulting to on.
func boolParam(v *bool) string {
	if v == nil || *v {
		return "true"
	}
	return "false"
}

// Deepgram response shapes. The same field nests at different levels across
// API versions, so normalization owns a documented fallback chain instead of
// callers duck-typing the payload.

type deepgramResponse struct {
	Metadata *deepgramMetadata `json:"metadata"`
	Results  deepgramResults   `json:"results"`
}

type deepgramMetadata struct {
	RequestID string                       `json:"request_id"`
	ModelInfo map[string]deepgramModelInfo `json:"model_info"`
	Models    []string                     `json:"models"`
	Duration  *float64                     `json:"duration"`
}

type deepgramModelInfo struct {
	Name string `json:"name"`
}

type deepgramResults struct {
	Channels []deepgramChannel `json:"channels"`
	Summary  *deepgramSummary  `json:"summary"`
}

type deepgramChannel struct {
	Alternatives     []deepgramAlternative `json:"alternatives"`
	DetectedLanguage string                `json:"detected_language"`
}

type deepgramAlternative struct {
	Transcript string                  `json:"transcript"`
	Confidence *float64                `json:"confidence"`
	Paragraphs *deepgramParagraphGroup `json:"paragraphs"`
	Summaries  []deepgramAltSummary    `json:"summaries"`
}

type deepgramParagraphGroup struct {
	Paragraphs []deepgramParagraph `json:"paragraphs"`
}

type deepgramParagraph struct {
	Sentences []deepgramSentence `json:"sentences"`
}

type deepgramSentence struct {
	Text string `json:"text"`
}

type deepgramAltSummary struct {
	Summary string `json:"summary"`
}

type deepgramSummary struct {
	Result string `json:"result"`
	Short  string `json:"short"`
}

// normalize flattens the first channel's first alternative into a
// TranscriptionResult. Transcript preference: paragraph-segmented text
// (sentences joined by spaces, paragraphs by a blank line), falling back to
// the flat transcript field.
func normalize(payload *deepgramResponse) (*TranscriptionResult, error) {
	var channel *deepgramChannel
	if len(payload.Results.Channels) > 0 {
		channel = &payload.Results.Channels[0]
	}
	if channel == nil || len(channel.Alternatives) == 0 {
		return nil, ErrNoAlternative
	}
	alternative := &channel.Alternatives[0]

	transcript := formatParagraphs(alternative.Paragraphs)
	if transcript == "" {
		transcript = strings.TrimSpace(alternative.Transcript)
	}
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	result := &TranscriptionResult{
		Transcript: transcript,
		Model:      extractModelName(payload.Metadata),
		Confidence: alternative.Confidence,
		Language:   channel.DetectedLanguage,
		Summary:    extractSummary(alternative, &payload.Results),
	}
	if payload.Metadata != nil {
		result.RequestID = payload.Metadata.RequestID
		result.Duration = payload.Metadata.Duration
	}

	return result, nil
}

func formatParagraphs(group *deepgramParagraphGroup) string {
	if group == nil || len(group.Paragraphs) == 0 {
		return ""
	}

	var paragraphs []string
	for _, paragraph := range group.Paragraphs {
		var sentences []string
		for _, sentence := range paragraph.Sentences {
			if text := strings.TrimSpace(sentence.Text); text != "" {
				sentences = append(sentences, text)
			}
		}
		if joined := strings.TrimSpace(strings.Join(sentences, " ")); joined != "" {
			paragraphs = append(paragraphs, joined)
		}
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// extractSummary prefers the per-alternative summaries joined with blank
// lines, then the response-level summary result, then its short form.
func extractSummary(alternative *deepgramAlternative, results *deepgramResults) string {
	var parts []string
	for _, s := range alternative.Summaries {
		if s.Summary != "" {
			parts = append(parts, s.Summary)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	if results.Summary != nil {
		if results.Summary.Result != "" {
			return results.Summary.Result
		}
		return results.Summary.Short
	}
	return ""
}

// extractModelName prefers the detailed per-model info, falling back to the
// flat model list.
func extractModelName(metadata *deepgramMetadata) string {
	if metadata == nil {
		return ""
	}
	for _, info := range metadata.ModelInfo {
		if info.Name != "" {
			return info.Name
		}
	}
	if len(metadata.Models) > 0 {
		return metadata.Models[0]
	}
	return ""
}
