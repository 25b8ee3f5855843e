package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// Extractor turns a document into the model's raw text response.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// Advisor produces a free-form spending review.
type Advisor interface {
	Recommend(ctx context.Context, txs []domain.Transaction) (string, error)
}

// ContentGenerator is the subset of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor calls Gemini for extraction and recommendations.
type GeminiExtractor struct {
	models ContentGenerator
	model  string
}

// NewGeminiExtractor creates a genai client from cfg. Credentials come from
// the environment (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiExtractor(ctx context.Context, cfg config.GeminiConfig) (*GeminiExtractor, error) {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v1"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: apiVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	return NewGeminiExtractorWithModels(client.Models, cfg.Model), nil
}

// NewGeminiExtractorWithModels wires an existing content generator, used by tests.
func NewGeminiExtractorWithModels(models ContentGenerator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{models: models, model: model}
}

// ModelName returns the Gemini model the extractor calls.
func (g *GeminiExtractor) ModelName() string {
	return g.model
}

// Extract sends the document to the model. PDFs travel as inline blobs and
// anything else as text appended to the prompt.
func (g *GeminiExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	log := logger.FromContext(ctx)

	parts := []*genai.Part{{Text: buildExtractionPrompt()}}
	if doc.MIMEType == MIMETypePDF {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: MIMETypePDF, Data: doc.Data},
		})
	} else {
		parts = append(parts, &genai.Part{Text: "Here is the extracted statement text:\n" + string(doc.Data)})
	}

	text, err := g.generate(ctx, parts)
	if err != nil {
		return "", fmt.Errorf("Extract: document %s: %w", doc.Name, err)
	}

	log.Debug().
		Str("document", doc.Name).
		Str("model", g.model).
		Int("response_bytes", len(text)).
		Msg("Model extraction completed")
	return text, nil
}

type recommendationRow struct {
	Date        string `json:"transaction_date,omitempty"`
	Description string `json:"activity_description"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty"`
	Amount      string `json:"amount_spent,omitempty"`
	Recurring   bool   `json:"is_subscription"`
}

// Recommend asks the model for a Markdown spending review of txs.
func (g *GeminiExtractor) Recommend(ctx context.Context, txs []domain.Transaction) (string, error) {
	rows := make([]recommendationRow, 0, len(txs))
	for _, tx := range txs {
		row := recommendationRow{
			Description: tx.ActivityDescription,
			Category:    tx.Category,
			SubCategory: tx.SubCategory,
			Recurring:   tx.IsSubscription,
		}
		if tx.TransactionDate != nil {
			row.Date = tx.TransactionDate.String()
		}
		if tx.AmountSpent.Valid {
			row.Amount = tx.AmountSpent.Decimal.StringFixed(2)
		}
		rows = append(rows, row)
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("Recommend: marshal transactions: %w", err)
	}

	text, err := g.generate(ctx, []*genai.Part{{Text: buildRecommendationPrompt(string(payload))}})
	if err != nil {
		return "", fmt.Errorf("Recommend: %w", err)
	}
	return text, nil
}

func (g *GeminiExtractor) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var temperature float32
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
