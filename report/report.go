package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"call-assist-service/llm"
	"call-assist-service/models"

	"github.com/apex/log"
)

const promptTemplate = `
You are a 911 operator assistant. Format the following call data and transcript into a standard 911 operator report.

Respond ONLY with a valid JSON object in the following format, with all fields filled in. Do NOT use Markdown formatting, code blocks, or triple backticks. Respond ONLY with raw JSON:

{
  "nature_of_emergency": "",
  "location": "",
  "persons_involved": "",
  "actions_taken": "",
  "units_dispatched": "",
  "outcome_resolution": "",
  "key_events": "",
  "operator_notes": ""
}

## Call Metadata
Call ID: %s
Date/Time: %s - %s
Caller Info: %s
Call Duration: %s

## Transcript
%s

Fill in each field based on the transcript and metadata. Do not include any text outside the JSON object.
`

// parseFailureMessage is the error value stored in the degraded result when
// the provider returns non-JSON text
const parseFailureMessage = "Could not parse response as JSON"

// ConfigurationError indicates a required provider credential is absent.
// It is raised before any network call.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// ProviderError indicates the report provider call itself failed
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("report provider call failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CallMetadata carries the call fields embedded into the report prompt
type CallMetadata struct {
	CallID     string
	StartTime  time.Time
	EndTime    *time.Time
	CallerInfo string
	Duration   *time.Duration
}

// Generator derives a structured incident report from transcript text via a
// language model provider
type Generator struct {
	client llm.Client
	apiKey string
}

// NewGenerator creates a report generator. The credential is passed in
// explicitly so a missing key can be detected without touching the network.
func NewGenerator(client llm.Client, apiKey string) *Generator {
	return &Generator{client: client, apiKey: apiKey}
}

// Generate builds the report prompt, invokes the provider and parses the
// response. A missing credential yields a ConfigurationError, a failed
// provider call a ProviderError. A response that is not valid JSON is not an
// error: it comes back as a parse-failure result carrying the raw text.
func (g *Generator) Generate(ctx context.Context, transcript string, meta CallMetadata) (models.ReportResult, error) {
	if g.apiKey == "" {
		return models.ReportResult{}, &ConfigurationError{
			Msg: "GEMINI_API_KEY is not configured",
		}
	}

	prompt := buildPrompt(transcript, meta)

	response, err := g.client.GenerateContent(ctx, prompt)
	if err != nil {
		return models.ReportResult{}, &ProviderError{Err: err}
	}

	cleaned := stripCodeFences(response)

	var parsed models.Report
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		log.WithField("provider", g.client.SourceName()).
			Warnf("report response is not valid JSON: %v", err)
		return models.ParseFailureResult(parseFailureMessage, response), nil
	}
	return models.OkReport(&parsed), nil
}

func buildPrompt(transcript string, meta CallMetadata) string {
	endTime := ""
	if meta.EndTime != nil {
		endTime = meta.EndTime.Format(time.RFC3339)
	}
	duration := ""
	if meta.Duration != nil {
		duration = meta.Duration.String()
	}
	return fmt.Sprintf(promptTemplate,
		meta.CallID,
		meta.StartTime.Format(time.RFC3339),
		endTime,
		meta.CallerInfo,
		duration,
		transcript,
	)
}

// stripCodeFences removes leading/trailing triple-backtick markers the
// provider may wrap the JSON in despite the no-markdown instruction
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "```json"))
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "```"))
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}
	return text
}
