package classifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/model"
)

// OpenAIConfig configures an OpenAI-compatible vision endpoint.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	TargetBrands []string
}

// OpenAIClassifier asks a vision chat model to describe the drink in a photo.
type OpenAIClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
	prompt  string
	metrics *metrics.Metrics
	log     *zap.Logger
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier. Extra options are appended to the
// client options and are mostly useful for tests.
func NewOpenAIClassifier(cfg OpenAIConfig, m *metrics.Metrics, log *zap.Logger, opts ...option.RequestOption) *OpenAIClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClassifier{
		client:  openai.NewClient(clientOpts...),
		model:   cfg.Model,
		timeout: timeout,
		prompt:  BuildPrompt(cfg.TargetBrands),
		metrics: m,
		log:     log.Named("classifier"),
	}
}

// BuildPrompt renders the instruction sent along with every image.
func BuildPrompt(targetBrands []string) string {
	cats := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		cats[i] = string(c)
	}

	var b strings.Builder
	b.WriteString("Identify the beverage in this photo. Reply with a single JSON object and nothing else, using these keys:\n")
	b.WriteString(`{"brandName": string, "category": one of [` + strings.Join(cats, ", ") + `], `)
	b.WriteString(`"volumeMl": number, "quantity": number, "confidence": number between 0 and 1, "isTargetBrand": boolean}`)
	b.WriteString("\nUse an empty brandName when the brand cannot be read.")
	if len(targetBrands) > 0 {
		b.WriteString("\nisTargetBrand is true only for these brands: ")
		b.WriteString(strings.Join(targetBrands, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// ImageURL returns the URL sent to the model: the hosted URL, or a data URL
// built from the raw bytes.
func ImageURL(img ImageInput) (string, error) {
	if len(img.Bytes) > 0 {
		ct := img.ContentType
		if ct == "" {
			ct = "image/jpeg"
		}
		return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes), nil
	}
	if img.URL != "" {
		return img.URL, nil
	}
	return "", ErrEmptyImage
}

// Classify sends the image to the model and returns its text reply.
func (c *OpenAIClassifier) Classify(ctx context.Context, img ImageInput) ([]byte, error) {
	url, err := ImageURL(img)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []openai.ChatCompletionContentPartUnionParam{
		{
			OfText: &openai.ChatCompletionContentPartTextParam{
				Text: c.prompt,
			},
		},
		{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL: url,
				},
			},
		},
	}
	userMessage := openai.ChatCompletionUserMessageParam{
		Content: openai.ChatCompletionUserMessageParamContentUnion{
			OfArrayOfContentParts: parts,
		},
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{OfUser: &userMessage},
		},
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	c.metrics.ObserveClassifier(time.Since(start), err)
	if err != nil {
		c.log.Error("vision request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("classify: empty completion")
	}

	content := completion.Choices[0].Message.Content
	c.log.Debug("vision reply",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(content)),
	)
	return []byte(content), nil
}
