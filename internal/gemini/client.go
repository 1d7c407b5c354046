package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/okhmat/lumen/internal/assets"
	"github.com/okhmat/lumen/internal/history"
)

// DefaultModel answers when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client wraps the Gemini API for text generation over a conversation window
// and for the media file lifecycle. It satisfies assets.RemoteStore.
type Client struct {
	api   *genai.Client
	model string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{api: api, model: model}, nil
}

// Generate produces a reply to prompt given the prior conversation window.
// media, when non-nil, is attached to the final user content alongside the
// prompt text.
func (c *Client) Generate(ctx context.Context, window []history.Turn, prompt string, media *assets.RemoteFile) (string, error) {
	contents := toContents(window)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if media != nil {
		parts = append(parts, genai.NewPartFromURI(media.URI, media.MIMEType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	resp, err := c.api.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func toContents(window []history.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(window))
	for _, turn := range window {
		var role genai.Role = genai.RoleUser
		if turn.Role == history.RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.Media != nil {
				// Remote files are deleted once their request finishes, so
				// stored URIs are dead. Only the text record goes back.
				continue
			}
			if p.Text == "" {
				continue
			}
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

// Upload pushes a local media file to the Files API.
func (c *Client) Upload(ctx context.Context, path, mimeType string) (assets.RemoteFile, error) {
	file, err := c.api.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return assets.RemoteFile{}, fmt.Errorf("gemini: upload file: %w", err)
	}
	return assets.RemoteFile{Name: file.Name, URI: file.URI, MIMEType: mimeType}, nil
}

// Status reports whether an uploaded file has finished server-side processing.
func (c *Client) Status(ctx context.Context, name string) (assets.RemoteState, error) {
	file, err := c.api.Files.Get(ctx, name, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: get file %s: %w", name, err)
	}
	switch file.State {
	case genai.FileStateActive:
		return assets.RemoteReady, nil
	case genai.FileStateFailed:
		return assets.RemoteFailed, nil
	default:
		return assets.RemoteProcessing, nil
	}
}

// Delete removes an uploaded file from the Files API.
func (c *Client) Delete(ctx context.Context, name string) error {
	if _, err := c.api.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("gemini: delete file %s: %w", name, err)
	}
	return nil
}
