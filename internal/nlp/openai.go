package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"newsimpact/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIScorer runs one chat completion per capability.
type OpenAIScorer struct {
	client openAIChatClient
	tracer trace.Tracer
	model  string
}

// NewOpenAIScorer returns nil when apiKey is empty.
func NewOpenAIScorer(tracer trace.Tracer, apiKey, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{
		client: &openAIClient{client: client},
		tracer: tracer,
		model:  model,
	}
}

func (s *OpenAIScorer) Model() string { return "llm:" + s.model }

func (s *OpenAIScorer) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	system := fmt.Sprintf("You summarize financial news. Reply with a plain-text summary of at most %d characters. No preamble.", maxChars)
	reply, err := s.complete(ctx, "summarize", system, text)
	if err != nil {
		return "", err
	}
	summary, _ := Truncate(strings.TrimSpace(reply), maxChars)
	return summary, nil
}

func (s *OpenAIScorer) ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	system := "You score the market sentiment of financial news. Return ONLY a JSON object with label (positive|neutral|negative) and confidence (0..1). No markdown."
	reply, err := s.complete(ctx, "sentiment", system, text)
	if err != nil {
		return domain.Sentiment{}, err
	}

	var parsed struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(trimCodeFence(reply)), &parsed); err != nil {
		return domain.Sentiment{}, fmt.Errorf("parse sentiment json: %w", err)
	}
	return domain.Sentiment{
		Label:      normalizeLabel(parsed.Label),
		Confidence: round4(clamp(parsed.Confidence, 0, 1)),
	}, nil
}

func (s *OpenAIScorer) ExtractKeywords(ctx context.Context, text string, k int) ([]domain.Keyword, error) {
	system := fmt.Sprintf("You extract keywords from financial news. Return ONLY a JSON array of at most %d objects with term (string) and score (0..1), most relevant first. No markdown.", k)
	reply, err := s.complete(ctx, "keywords", system, text)
	if err != nil {
		return nil, err
	}

	var parsed []domain.Keyword
	if err := json.Unmarshal([]byte(trimCodeFence(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("parse keywords json: %w", err)
	}
	out := make([]domain.Keyword, 0, len(parsed))
	for _, kw := range parsed {
		term := strings.TrimSpace(kw.Term)
		if term == "" {
			continue
		}
		out = append(out, domain.Keyword{Term: term, Score: round4(clamp(kw.Score, 0, 1))})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (s *OpenAIScorer) ExtractCompanies(ctx context.Context, text string) ([]string, error) {
	system := "You list the companies named in financial news. Return ONLY a JSON array of company names as written in the text. No markdown."
	reply, err := s.complete(ctx, "companies", system, text)
	if err != nil {
		return nil, err
	}

	var parsed []string
	if err := json.Unmarshal([]byte(trimCodeFence(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("parse companies json: %w", err)
	}
	return dedupeNames(parsed), nil
}

func (s *OpenAIScorer) complete(ctx context.Context, capability, system, user string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "nlp.openai-"+capability)
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", s.model))

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty %s completion", capability)
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
