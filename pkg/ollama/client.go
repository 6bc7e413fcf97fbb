package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// defaultTimeout bounds a single model call when the caller's context has no
// deadline. Vision models on CPU can be slow.
const defaultTimeout = 300 * time.Second

// Client adapts the Ollama chat API to the client.VisionBackend contract.
type Client struct {
	client *api.Client
}

// NewClient creates an Ollama backend for the given server URL, ignoring the
// environment.
func NewClient(serverURL string) (*Client, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Strip any path like /api/chat; the SDK appends its own.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// GenerateStructured sends a prompt plus inline images and returns the raw
// text response.
func (c *Client) GenerateStructured(ctx context.Context, model, prompt string, images []types.InlineImage) (string, error) {
	const op = "ollama.GenerateStructured"

	content, _, err := c.chat(ctx, model, prompt, images)
	if err != nil {
		return "", wrapErr(op, err)
	}
	if content == "" {
		return "", client.NewError(client.KindService, op, errors.New("empty response from ollama"))
	}
	return content, nil
}

// GenerateImage sends a prompt plus inline images and returns the first
// inline image found in the response.
func (c *Client) GenerateImage(ctx context.Context, model, prompt string, images []types.InlineImage, opts client.ImageOptions) (*types.InlineImage, error) {
	const op = "ollama.GenerateImage"

	prompt = appendImageOptions(prompt, opts)
	content, respImages, err := c.chat(ctx, model, prompt, images)
	if err != nil {
		return nil, wrapErr(op, err)
	}

	if len(respImages) > 0 {
		data := []byte(respImages[0])
		return &types.InlineImage{Data: data, MediaType: http.DetectContentType(data)}, nil
	}

	// Some models return the image as a data URI inside the text content.
	if idx := strings.Index(content, "data:image/"); idx >= 0 {
		uri := content[idx:]
		if end := strings.IndexAny(uri, " \n\t\"')"); end >= 0 {
			uri = uri[:end]
		}
		if img, err := types.ParseDataURI(uri); err == nil {
			return &img, nil
		}
	}

	return nil, client.NewError(client.KindSynthesis, op, errors.New("response contained no image"))
}

func (c *Client) chat(ctx context.Context, model, prompt string, images []types.InlineImage) (string, []api.ImageData, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	imageData := make([]api.ImageData, len(images))
	for i, img := range images {
		imageData[i] = api.ImageData(img.Data)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  imageData,
			},
		},
		Stream: &streamFalse,
	}

	var content string
	var respImages []api.ImageData
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		respImages = resp.Message.Images
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return content, respImages, nil
}

func appendImageOptions(prompt string, opts client.ImageOptions) string {
	var extra []string
	if opts.AspectRatio != "" {
		extra = append(extra, "Output aspect ratio: "+opts.AspectRatio+".")
	}
	if opts.Resolution != "" {
		extra = append(extra, "Output resolution: "+opts.Resolution+".")
	}
	if len(extra) == 0 {
		return prompt
	}
	return prompt + "\n" + strings.Join(extra, " ")
}

// wrapErr tags an SDK error with the matching service error kind. Credential
// failures are recognized by HTTP status, not message text.
func wrapErr(op string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return client.NewError(client.KindAuth, op, err)
		}
	}
	return client.NewError(client.KindService, op, err)
}
