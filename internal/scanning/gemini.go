package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiTimeout bounds a single Gemini call
const geminiTimeout = 60 * time.Second

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client          *genai.Client
	transcribeModel *genai.GenerativeModel
	structureModel  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	transcribeModel := client.GenerativeModel(modelName)

	// Constrain the structuring model to the receipt schema so the reply is plain JSON
	structureModel := client.GenerativeModel(modelName)
	structureModel.ResponseMIMEType = "application/json"
	structureModel.ResponseSchema = geminiReceiptSchema()
	structureModel.SetTemperature(0)

	return &Gemini{
		client:          client,
		transcribeModel: transcribeModel,
		structureModel:  structureModel,
	}, nil
}

// geminiReceiptSchema is receiptSchema expressed as a genai.Schema
func geminiReceiptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant": {Type: genai.TypeString},
			"date":     {Type: genai.TypeString},
			"total":    {Type: genai.TypeNumber},
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item":     {Type: genai.TypeString},
						"quantity": {Type: genai.TypeNumber},
						"price":    {Type: genai.TypeNumber},
					},
					Required: []string{"item", "quantity", "price"},
				},
			},
		},
		Required: []string{"merchant", "date", "total", "items"},
	}
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return strings.TrimSpace(text.String())
}

// ExtractText transcribes the receipt image
func (g *Gemini) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	// genai.ImageData expects just the format suffix, not the full MIME type
	resp, err := g.transcribeModel.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return "", &ExtractionError{Err: fmt.Errorf("generating content: %w", err)}
	}

	text := responseText(resp)
	if text == "" {
		return "", &ExtractionError{Err: ErrNoText}
	}
	return text, nil
}

// Structure converts transcribed text into ReceiptData
func (g *Gemini) Structure(ctx context.Context, text string) (*ReceiptData, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	resp, err := g.structureModel.GenerateContent(ctx, genai.Text(structurePrompt+text))
	if err != nil {
		return nil, &StructuringError{Err: fmt.Errorf("generating content: %w", err)}
	}

	data, err := parseReceiptJSON(responseText(resp))
	if err != nil {
		return nil, &StructuringError{Err: fmt.Errorf("parsing receipt data: %w", err)}
	}
	return data, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
