// Package openaicompat talks to OpenAI-compatible chat completion servers
// (llama.cpp server, vLLM, hosted gateways) and adapts them to the
// client.VisionBackend contract. Images travel as data URIs in both
// directions.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

const defaultTimeout = 5 * time.Minute

// Client is an OpenAI-compatible chat completions backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Message is an OpenAI-compatible chat message. Content is either a string or
// a []ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Modalities  []string  `json:"modalities,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// NewClient creates a backend for the given server URL. apiKey may be empty
// for unauthenticated local servers.
func NewClient(serverURL, apiKey string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// GenerateStructured sends a prompt plus inline images and returns the raw
// text response.
func (c *Client) GenerateStructured(ctx context.Context, model, prompt string, images []types.InlineImage) (string, error) {
	const op = "openaicompat.GenerateStructured"

	req := chatCompletionRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: buildContent(prompt, images)}},
		Temperature: 0.2,
		MaxTokens:   4096,
		Stream:      false,
	}

	resp, err := c.send(ctx, op, req)
	if err != nil {
		return "", err
	}

	text := extractText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", client.NewError(client.KindService, op, errors.New("no text content in response"))
	}
	return text, nil
}

// GenerateImage sends a prompt plus inline images and returns the first
// inline image found in the response.
func (c *Client) GenerateImage(ctx context.Context, model, prompt string, images []types.InlineImage, opts client.ImageOptions) (*types.InlineImage, error) {
	const op = "openaicompat.GenerateImage"

	if opts.AspectRatio != "" {
		prompt += "\nOutput aspect ratio: " + opts.AspectRatio + "."
	}
	if opts.Resolution != "" {
		prompt += "\nOutput resolution: " + opts.Resolution + "."
	}

	req := chatCompletionRequest{
		Model:      model,
		Messages:   []Message{{Role: "user", Content: buildContent(prompt, images)}},
		MaxTokens:  4096,
		Modalities: []string{"image", "text"},
		Stream:     false,
	}

	resp, err := c.send(ctx, op, req)
	if err != nil {
		return nil, err
	}

	img := extractImage(resp.Choices[0].Message.Content)
	if img == nil {
		return nil, client.NewError(client.KindSynthesis, op, errors.New("response contained no image"))
	}
	return img, nil
}

func (c *Client) send(ctx context.Context, op string, payload chatCompletionRequest) (*chatCompletionResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, client.NewError(client.KindService, op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, client.NewError(client.KindService, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, client.NewError(client.KindService, op, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, client.NewError(client.KindService, op, fmt.Errorf("failed to read response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, client.NewError(client.KindAuth, op, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body)))
	default:
		return nil, client.NewError(client.KindService, op, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, client.NewError(client.KindService, op, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, client.NewError(client.KindService, op, errors.New("no choices in response"))
	}
	return &parsed, nil
}

func buildContent(prompt string, images []types.InlineImage) []ContentPart {
	content := []ContentPart{{Type: "text", Text: prompt}}
	for _, img := range images {
		content = append(content, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: img.DataURI()},
		})
	}
	return content
}

// extractText pulls the first non-empty text out of a message content, which
// may be a plain string or a part list.
func extractText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		for _, item := range v {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

// extractImage pulls the first inline image out of a message content: either
// an image_url part or a data URI embedded in a string.
func extractImage(content interface{}) *types.InlineImage {
	switch v := content.(type) {
	case string:
		return imageFromText(v)
	case []interface{}:
		for _, item := range v {
			partMap, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if imageURL, ok := partMap["image_url"].(map[string]interface{}); ok {
				if uri, ok := imageURL["url"].(string); ok {
					if img, err := types.ParseDataURI(uri); err == nil {
						return &img
					}
				}
			}
			if text, ok := partMap["text"].(string); ok {
				if img := imageFromText(text); img != nil {
					return img
				}
			}
		}
	}
	return nil
}

func imageFromText(text string) *types.InlineImage {
	idx := strings.Index(text, "data:image/")
	if idx < 0 {
		return nil
	}
	uri := text[idx:]
	if end := strings.IndexAny(uri, " \n\t\"')"); end >= 0 {
		uri = uri[:end]
	}
	img, err := types.ParseDataURI(uri)
	if err != nil {
		return nil
	}
	return &img
}
