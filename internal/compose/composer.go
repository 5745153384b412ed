package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Karthik0956A/clauseai-2.0/internal/gemini"
	"github.com/Karthik0956A/clauseai-2.0/internal/models"

	"github.com/rs/zerolog"
)

// ErrInferenceFailed is the single opaque error surfaced when the external
// inference call fails.
var ErrInferenceFailed = errors.New("inference failed")

// DefaultLanguage is the output language that needs no instruction suffix.
const DefaultLanguage = "english"

const languageSuffix = "\n\n(Please provide the answer in %s language. If explaining a document, keep valid terms but explain in %s.)"

// Turn is one prior exchange as stored internally.
type Turn struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Request carries every context source assembled into one inference call.
type Request struct {
	Message  string
	History  []Turn
	File     *models.DocumentRef
	Audio    *models.DocumentRef
	Language string
}

// Inferencer is the external inference contract consumed by the composer.
type Inferencer interface {
	Infer(ctx context.Context, history []gemini.Turn, parts []gemini.Part, systemInstruction string) (string, error)
}

// Composer builds one inference invocation from document, audio, text, and
// history. It never persists anything; saving the turn is the caller's
// separate step.
type Composer struct {
	ai  Inferencer
	log zerolog.Logger
}

// NewComposer constructs a composer over the injected inference client.
func NewComposer(ai Inferencer, log zerolog.Logger) *Composer {
	return &Composer{ai: ai, log: log}
}

// Respond issues exactly one inference call and returns its text verbatim.
func (c *Composer) Respond(ctx context.Context, req Request) (string, error) {
	history := NormalizeHistory(req.History)

	message := req.Message
	if lang := strings.ToLower(strings.TrimSpace(req.Language)); lang != "" && lang != DefaultLanguage {
		message += fmt.Sprintf(languageSuffix, capitalize(lang), lang)
	}

	// Part order is a grounding-priority contract with the inference
	// service: document first, then transient audio, then the message.
	parts := make([]gemini.Part, 0, 3)
	if req.File != nil {
		parts = append(parts, gemini.FilePart(req.File))
	}
	if req.Audio != nil {
		parts = append(parts, gemini.FilePart(req.Audio))
	}
	parts = append(parts, gemini.TextPart(message))

	text, err := c.ai.Infer(ctx, history, parts, SystemInstruction)
	if err != nil {
		c.log.Error().Err(err).Msg("inference call failed")
		return "", ErrInferenceFailed
	}
	return text, nil
}

// NormalizeHistory prepares prior turns for the external contract: leading
// turns are dropped until the first user turn, system turns are excluded,
// and assistant maps to the external "model" label.
func NormalizeHistory(turns []Turn) []gemini.Turn {
	start := -1
	for i, t := range turns {
		if t.Role == models.RoleUser {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	out := make([]gemini.Turn, 0, len(turns)-start)
	for _, t := range turns[start:] {
		switch t.Role {
		case models.RoleUser:
			out = append(out, gemini.Turn{Role: "user", Content: t.Content})
		case models.RoleAssistant:
			out = append(out, gemini.Turn{Role: "model", Content: t.Content})
		}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
