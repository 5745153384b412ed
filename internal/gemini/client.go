package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Karthik0956A/clauseai-2.0/internal/models"

	"google.golang.org/genai"
)

// Turn is one prior exchange forwarded to the model. Role is the external
// label ("user" or "model"), not the internal conversation role.
type Turn struct {
	Role    string
	Content string
}

// Part is one content part of an outgoing request: either a file reference
// held by the Files API or plain text.
type Part struct {
	FileURI  string
	MIMEType string
	Text     string
}

// FilePart builds a file-reference part from a document handle.
func FilePart(ref *models.DocumentRef) Part {
	return Part{FileURI: ref.URI, MIMEType: ref.MimeType}
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Client is the single process-wide handle to the external file and
// inference store. Construct it once in main and pass it by reference.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient builds a Gemini API client for the configured model.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{client: client, model: model}, nil
}

// Upload pushes a local file to the Files API and returns its handle.
func (c *Client) Upload(ctx context.Context, path, mimeType, displayName string) (*models.DocumentRef, error) {
	file, err := c.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	name := file.Name
	if name == "" {
		name = displayName
	}
	return &models.DocumentRef{Name: name, MimeType: file.MIMEType, URI: file.URI}, nil
}

// Infer issues exactly one generateContent call with the mapped history
// followed by the assembled parts and returns the text result verbatim.
func (c *Client) Infer(ctx context.Context, history []Turn, parts []Part, systemInstruction string) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("at least one content part is required")
	}
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, genai.NewContentFromText(turn.Content, genai.Role(turn.Role)))
	}
	reqParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.FileURI != "" {
			reqParts = append(reqParts, genai.NewPartFromURI(p.FileURI, p.MIMEType))
		} else {
			reqParts = append(reqParts, genai.NewPartFromText(p.Text))
		}
	}
	contents = append(contents, genai.NewContentFromParts(reqParts, genai.RoleUser))

	var cfg *genai.GenerateContentConfig
	if systemInstruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Summarize runs a short standalone text prompt, used for title derivation.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
