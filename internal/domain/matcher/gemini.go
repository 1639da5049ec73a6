package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rentdesk/rentdesk-backend/internal/infrastructure/storage"
)

// GeminiScorer is the AI-assisted Scorer implementation. It asks Gemini to
// apply the same scoring rubric as the rule-based scorer and to return
// STRICT JSON. It satisfies the same Scorer contract, so the runner does not
// care which implementation is active.
type GeminiScorer struct {
	client *genai.Client
	model  string
}

// Compile-time check that GeminiScorer implements Scorer
var _ Scorer = (*GeminiScorer)(nil)

// NewGeminiScorer creates a Gemini-backed scorer. The API key is read from
// the environment by the genai client when apiKey is empty.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &GeminiScorer{client: client, model: model}, nil
}

// geminiVerdict is the strict JSON shape the model is instructed to return
type geminiVerdict struct {
	Score        int      `json:"score"`
	Disqualified bool     `json:"disqualified"`
	Reasons      []string `json:"reasons"`
}

// Score asks the model to score one pair. Errors (transport, malformed
// output) are returned to the caller, which treats the pair as unscored.
func (s *GeminiScorer) Score(ctx context.Context, tx *storage.BankTransaction, ob *storage.Obligation) (int, Rationale, error) {
	prompt := buildScoringPrompt(tx, ob)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return 0, Rationale{}, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return 0, Rationale{}, fmt.Errorf("empty response from model")
	}

	var verdict geminiVerdict
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &verdict); err != nil {
		return 0, Rationale{}, fmt.Errorf("unmarshal model verdict: %w\nraw response: %s", err, rawText)
	}

	if verdict.Disqualified || verdict.Score < 0 {
		return 0, Rationale{Disqualified: true, Reasons: verdict.Reasons}, nil
	}

	return verdict.Score, Rationale{Reasons: verdict.Reasons}, nil
}

// buildScoringPrompt renders the rubric and the pair under evaluation.
// The rubric mirrors the rule-based scorer so both implementations stay
// interchangeable behind the Scorer interface.
func buildScoringPrompt(tx *storage.BankTransaction, ob *storage.Obligation) string {
	return "You are a bank-transaction reconciliation assistant for a property management platform.\n\n" +
		"Score how likely it is that the transaction below pays the obligation below.\n" +
		"Apply this rubric, additively:\n" +
		"- Amount within 1% of the obligation amount: 50 points. Within 5%: 25 points.\n" +
		"  Further apart than 5%: the pair is disqualified (score 0) no matter what.\n" +
		"- Transaction date within 3 days of the due date: 25 points; within 7: 15; within 15: 5.\n" +
		"- Full party name appears in the bank narrative: 25 points; a single name token: 10.\n" +
		"- Billing period label referenced: +10. Unit/contract reference: +5.\n\n" +
		"Transaction:\n" +
		fmt.Sprintf("- amount: %s\n- date: %s\n- description: %q\n- counterparty: %q\n\n",
			tx.Amount, tx.Date.Format("2006-01-02"), tx.Description, tx.CounterpartyName) +
		"Obligation:\n" +
		fmt.Sprintf("- amount: %s\n- due date: %s\n- party: %q\n- period: %q\n- reference: %q\n\n",
			ob.Amount, ob.DueDate.Format("2006-01-02"), ob.PartyName, ob.PeriodLabel, ob.ReferenceLabel) +
		"Output STRICT JSON only (no comments, no extra text):\n" +
		"{\"score\": <int>, \"disqualified\": <bool>, \"reasons\": [<short strings>]}\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
}

// cleanModelJSON strips Markdown fences / extra text if the model ignored
// the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
