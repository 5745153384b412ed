package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Karthik0956A/clauseai-2.0/internal/gemini"
	"github.com/Karthik0956A/clauseai-2.0/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrInferenceFailed is surfaced when the analysis call itself fails.
	ErrInferenceFailed = errors.New("inference failed")
	// ErrParseFailed is terminal for the call; analyses are never retried.
	ErrParseFailed = errors.New("analysis result parse failed")
)

// RiskCategories is the closed set every identified clause maps into.
var RiskCategories = []string{
	"Financial Consequence",
	"Legal Penalties",
	"Loss of Rights",
	"Time-based Obligations",
}

// Risk is one categorized clause finding.
type Risk struct {
	Category    string `json:"category"`
	Severity    int    `json:"severity"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// RiskReport is the structured output of a risk assessment.
type RiskReport struct {
	RiskScore int    `json:"riskScore"`
	Risks     []Risk `json:"risks"`
}

// Suggestion proposes a safer alternative for one clause.
type Suggestion struct {
	Original string `json:"original"`
	Proposed string `json:"proposed"`
	Reason   string `json:"reason"`
}

// SuggestionSet is the structured output of suggestion drafting.
type SuggestionSet struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// ClauseDiff is one clause-level difference between two agreements.
type ClauseDiff struct {
	Title        string `json:"title"`
	ContentA     string `json:"contentA"`
	ContentB     string `json:"contentB"`
	Difference   string `json:"difference"`
	RiskLevel    string `json:"riskLevel"`
	RiskAnalysis string `json:"riskAnalysis"`
}

// Comparison is the structured output of a document comparison.
type Comparison struct {
	Clauses []ClauseDiff `json:"clauses"`
}

// Inferencer is the history-less inference contract the dispatchers consume.
type Inferencer interface {
	Infer(ctx context.Context, history []gemini.Turn, parts []gemini.Part, systemInstruction string) (string, error)
}

// Dispatcher runs the three stateless structured analyses. Each operation
// issues exactly one inference call; there is no multi-step refinement.
type Dispatcher struct {
	ai  Inferencer
	log zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the injected inference client.
func NewDispatcher(ai Inferencer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{ai: ai, log: log}
}

// AssessRisk scores the document 0-100 and maps each risky clause into
// exactly one of the four fixed categories.
func (d *Dispatcher) AssessRisk(ctx context.Context, ref *models.DocumentRef) (*RiskReport, error) {
	raw, err := d.dispatch(ctx, riskPrompt, ref)
	if err != nil {
		return nil, err
	}
	var report RiskReport
	if err := parseResult(raw, &report); err != nil {
		d.log.Error().Err(err).Msg("risk result parse failed")
		return nil, ErrParseFailed
	}
	if report.RiskScore < 0 || report.RiskScore > 100 {
		return nil, ErrParseFailed
	}
	for _, risk := range report.Risks {
		if !validCategory(risk.Category) || risk.Severity < 0 || risk.Severity > 10 {
			return nil, ErrParseFailed
		}
	}
	return &report, nil
}

// DraftSuggestions proposes safer alternatives for risky clauses.
func (d *Dispatcher) DraftSuggestions(ctx context.Context, ref *models.DocumentRef) (*SuggestionSet, error) {
	raw, err := d.dispatch(ctx, suggestPrompt, ref)
	if err != nil {
		return nil, err
	}
	var set SuggestionSet
	if err := parseResult(raw, &set); err != nil {
		d.log.Error().Err(err).Msg("suggestion result parse failed")
		return nil, ErrParseFailed
	}
	return &set, nil
}

// Compare diffs two agreements clause by clause.
func (d *Dispatcher) Compare(ctx context.Context, a, b *models.DocumentRef) (*Comparison, error) {
	raw, err := d.dispatch(ctx, comparePrompt, a, b)
	if err != nil {
		return nil, err
	}
	var cmp Comparison
	if err := parseResult(raw, &cmp); err != nil {
		d.log.Error().Err(err).Msg("comparison result parse failed")
		return nil, ErrParseFailed
	}
	for _, clause := range cmp.Clauses {
		switch clause.RiskLevel {
		case "High", "Medium", "Low":
		default:
			return nil, ErrParseFailed
		}
	}
	return &cmp, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, prompt string, refs ...*models.DocumentRef) (string, error) {
	parts := make([]gemini.Part, 0, len(refs)+1)
	for _, ref := range refs {
		parts = append(parts, gemini.FilePart(ref))
	}
	parts = append(parts, gemini.TextPart(prompt))

	raw, err := d.ai.Infer(ctx, nil, parts, "")
	if err != nil {
		d.log.Error().Err(err).Msg("analysis inference failed")
		return "", ErrInferenceFailed
	}
	return raw, nil
}

// parseResult strips code-fence delimiters the model may wrap around the
// JSON body, then unmarshals.
func parseResult(raw string, out interface{}) error {
	cleaned := stripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("unmarshal analysis result: %w", err)
	}
	return nil
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func validCategory(category string) bool {
	for _, c := range RiskCategories {
		if category == c {
			return true
		}
	}
	return false
}
