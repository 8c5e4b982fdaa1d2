// Package vision reads one rendered schematic page through an
// OpenAI-compatible vision model and returns typed wire and component rows.
// The client owns request pacing and failure classification so callers can
// decide what to retry without inspecting HTTP details.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/resilience"
)

// Options configures the vision client.
type Options struct {
	BaseURL string // chat-completions endpoint root, e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
	// Interval spaces outgoing requests; Burst allows short spikes.
	Interval time.Duration
	Burst    int
	Breaker  resilience.BreakerOpts
}

// DefaultOptions matches the pacing the recognition providers tolerate.
var DefaultOptions = Options{
	Model:    "gpt-4o",
	Timeout:  120 * time.Second,
	Interval: 500 * time.Millisecond,
	Burst:    3,
}

// Client calls the recognition model for one page at a time.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	httpClient *http.Client
}

// NewClient creates a vision client with the given options.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultOptions.Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions.Interval
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultOptions.Burst
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		limiter:    rate.NewLimiter(rate.Every(opts.Interval), opts.Burst),
		breaker:    resilience.NewBreaker(opts.Breaker),
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// pageResult is the structured payload the model is asked to emit.
type pageResult struct {
	PanelLabel  string         `json:"panel_label"`
	SheetNumber int            `json:"sheet_number"`
	IsSchematic bool           `json:"is_schematic_page"`
	Wires       []wireRow      `json:"wires"`
	Components  []componentRow `json:"components"`
	Warnings    []string       `json:"warnings"`
}

type wireRow struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Cable     string `json:"cable"`
	Gauge     string `json:"gauge"`
	Color     string `json:"color"`
	LengthMM  int    `json:"length_mm"`
	TerminalA string `json:"terminal_a"`
	TerminalB string `json:"terminal_b"`
	Note      string `json:"note"`
}

type componentRow struct {
	Ref          string   `json:"ref"`
	Description  string   `json:"description"`
	Quantity     int      `json:"quantity"`
	Manufacturer string   `json:"manufacturer"`
	PartNumber   string   `json:"part_number"`
	Location     string   `json:"location"`
	Note         string   `json:"note"`
	Wires        []string `json:"wires"`
}

// Recognize reads one page. Returned errors wrap the domain sentinels so the
// orchestrator can tell rate limits and outages from permanently bad pages.
func (c *Client) Recognize(ctx context.Context, page domain.PagePayload) (domain.PageExtract, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.PageExtract{}, err
	}

	body, err := json.Marshal(c.buildRequest(page))
	if err != nil {
		return domain.PageExtract{}, err
	}

	var extract domain.PageExtract
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		extract, callErr = c.call(ctx, body)
		return callErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// An open breaker means the provider is down, not that this page
		// is bad. Let the retry schedule wait it out.
		return domain.PageExtract{}, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return extract, err
}

func (c *Client) buildRequest(page domain.PagePayload) chatRequest {
	parts := []contentPart{{Type: "text", Text: userPrompt(page)}}
	if len(page.Image) > 0 {
		mime := page.MIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(page.Image)},
		})
	}
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: parts},
		},
		Temperature: 0,
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: "schematic_page", Strict: true, Schema: json.RawMessage(pageSchema)},
		},
	}
}

func (c *Client) call(ctx context.Context, body []byte) (domain.PageExtract, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.PageExtract{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PageExtract{}, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PageExtract{}, fmt.Errorf("%w: reading response: %v", domain.ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		return domain.PageExtract{}, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return domain.PageExtract{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	if cr.Error != nil {
		return domain.PageExtract{}, fmt.Errorf("recognition: %s (%s)", cr.Error.Message, cr.Error.Type)
	}
	if len(cr.Choices) == 0 {
		return domain.PageExtract{}, fmt.Errorf("%w: empty choices", domain.ErrMalformedOutput)
	}

	return parseContent(cr.Choices[0].Message.Content)
}

// classifyStatus maps HTTP status codes onto the domain error taxonomy.
// 429 and 5xx are worth retrying, everything else 4xx is not.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrTransient, status)
	default:
		return fmt.Errorf("recognition: status %d: %s", status, firstLine(body))
	}
}

func parseContent(content string) (domain.PageExtract, error) {
	var pr pageResult
	if err := json.Unmarshal([]byte(stripFence(content)), &pr); err != nil {
		return domain.PageExtract{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	extract := domain.PageExtract{
		PanelLabel:  strings.TrimSpace(pr.PanelLabel),
		Foglio:      pr.SheetNumber,
		IsSchematic: pr.IsSchematic,
		Warnings:    pr.Warnings,
	}
	for _, w := range pr.Wires {
		extract.Wires = append(extract.Wires, domain.WireRecord{
			ID:        w.ID,
			From:      w.From,
			To:        w.To,
			Cable:     w.Cable,
			Gauge:     w.Gauge,
			Color:     w.Color,
			LengthMM:  w.LengthMM,
			TerminalA: w.TerminalA,
			TerminalB: w.TerminalB,
			Note:      w.Note,
		})
	}
	for _, comp := range pr.Components {
		extract.Components = append(extract.Components, domain.ComponentRecord{
			Ref:          comp.Ref,
			Description:  comp.Description,
			Quantity:     comp.Quantity,
			Manufacturer: comp.Manufacturer,
			PartNumber:   comp.PartNumber,
			Location:     comp.Location,
			Note:         comp.Note,
			Wires:        comp.Wires,
		})
	}
	return extract, nil
}

// stripFence removes a markdown code fence some models wrap around JSON
// even when a structured response format was requested.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstLine(body []byte) string {
	line := strings.TrimSpace(string(body))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}
