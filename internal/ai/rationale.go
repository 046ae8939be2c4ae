package ai

import (
	"ap-reconciler/internal/core"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// reviewSummary is the structured shape the model must emit.
type reviewSummary struct {
	Status            string `json:"status" jsonschema_description:"Either 'matched' or 'needs_review', restating the engine's decision"`
	PrimaryIssue      string `json:"primary_issue" jsonschema_description:"The single most important discrepancy, or 'none' when the invoice is clean"`
	Reasoning         string `json:"reasoning" jsonschema_description:"A concise explanation of the decision an AP reviewer can act on, two to four sentences"`
	RecommendedAction string `json:"recommended_action" jsonschema_description:"What the reviewer should do next (e.g. 'approve', 'contact vendor about pricing')"`
}

// Agent generates human-readable review rationales for matching results. It
// never makes or alters decisions; the deterministic engine already decided.
type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

func (a *Agent) GenerateRationale(ctx context.Context, inv *core.Invoice, po *core.PurchaseOrder, issues []core.MatchingIssue) (string, error) {
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return "", fmt.Errorf("failed to marshal issues: %w", err)
	}

	poRef := "none found"
	if po != nil {
		poRef = po.PONumber
	}

	prompt := fmt.Sprintf(`You are an accounts-payable reviewer's assistant.
A deterministic matching engine has already compared an invoice against its purchase order and produced the findings below.
Your job is ONLY to explain the findings in plain language. Do not second-guess the engine, invent issues, or change severities.

Invoice: %s, total %s %s
Purchase order: %s
Findings (empty means all checks passed):
%s`,
		inv.InvoiceNumber, inv.TotalAmount.StringFixed(2), inv.Currency, poRef, string(issuesJSON))

	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return "", fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "review_summary",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A reviewer-facing summary of invoice matching findings"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	var summary reviewSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return "", fmt.Errorf("failed to parse completion: %w", err)
	}

	return summary.render(), nil
}

func (s reviewSummary) render() string {
	var b strings.Builder
	b.WriteString(s.Reasoning)
	if s.PrimaryIssue != "" && s.PrimaryIssue != "none" {
		fmt.Fprintf(&b, " Primary issue: %s.", s.PrimaryIssue)
	}
	if s.RecommendedAction != "" {
		fmt.Fprintf(&b, " Recommended action: %s.", s.RecommendedAction)
	}
	return b.String()
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v reviewSummary
	return reflector.Reflect(v)
}
