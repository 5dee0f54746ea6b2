package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/services/llm"
)

const llmSystemInstruction = `You evaluate how well a job posting fits a candidate profile.
Score fit from 0.0 (no fit) to 1.0 (perfect fit) considering skills, seniority, and location.
Respond with a JSON object: {"semantic_score": <0..1>, "rationale": "<one or two sentences>", "extracted_skills": [...], "requirements": [...]}.`

// LLMAnalyzer is the model-backed stage2 variant. Model unavailability
// surfaces as KindTransient, malformed model output as KindAdapterDrift;
// the processor skips the record either way and leaves it retryable.
type LLMAnalyzer struct {
	factory *llm.ProviderFactory
	model   string
	logger  arbor.ILogger
}

func NewLLMAnalyzer(factory *llm.ProviderFactory, model string, logger arbor.ILogger) *LLMAnalyzer {
	return &LLMAnalyzer{factory: factory, model: model, logger: logger}
}

func (a *LLMAnalyzer) Name() string { return "llm" }

func (a *LLMAnalyzer) Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*interfaces.Analysis, error) {
	const op = "analyzer.llm"

	resp, err := a.factory.GenerateContent(ctx, &llm.ContentRequest{
		Prompt:            buildAnalysisPrompt(record, profile),
		Model:             a.model,
		SystemInstruction: llmSystemInstruction,
		ForceJSON:         true,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysisJSON(resp.Text)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("fingerprint", record.Fingerprint).
			Str("model", string(resp.Model)).
			Msg("Model returned unparseable analysis")
		return nil, common.E(common.KindAdapterDrift, op, err)
	}
	return analysis, nil
}

// buildAnalysisPrompt renders the record and profile into the evaluation
// prompt. Long descriptions are truncated; the lead paragraphs carry the
// signal.
func buildAnalysisPrompt(record *models.JobRecord, profile *models.Profile) string {
	description := record.Description
	if description == "" {
		description = record.Summary
	}
	if len(description) > 4000 {
		description = description[:4000]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Candidate profile:\n- skills: %s\n- keywords: %s\n- locations: %s\n- seniority: %s\n- remote ok: %t\n\n",
		strings.Join(profile.Skills, ", "),
		strings.Join(profile.Keywords, ", "),
		strings.Join(profile.Locations, ", "),
		strings.Join(profile.SeniorityLevels, ", "),
		profile.RemoteOK)
	fmt.Fprintf(&b, "Job posting:\n- title: %s\n- company: %s\n- location: %s\n", record.Title, record.Company, record.Location)
	if record.SalaryText != "" {
		fmt.Fprintf(&b, "- salary: %s\n", record.SalaryText)
	}
	if description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", description)
	}
	return b.String()
}

// parseAnalysisJSON decodes the model's JSON, tolerating markdown fences,
// and validates the score range.
func parseAnalysisJSON(text string) (*interfaces.Analysis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Some models wrap the object in prose; take the outermost braces.
	if start := strings.Index(text, "{"); start > 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var analysis interfaces.Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("malformed analysis JSON: %w", err)
	}
	if analysis.SemanticScore < 0 || analysis.SemanticScore > 1 {
		return nil, fmt.Errorf("semantic_score %f outside [0,1]", analysis.SemanticScore)
	}
	if analysis.Rationale == "" {
		return nil, fmt.Errorf("analysis missing rationale")
	}
	return &analysis, nil
}
