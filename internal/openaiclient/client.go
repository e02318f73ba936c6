package openaiclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
)

type Options struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	ImageModel        string
	RequestsPerSecond float64
	Templates         Templates
}

// Client implements the outcome generator and the illustrator on top of
// the OpenAI API. Calls are paced by a shared limiter.
type Client struct {
	api        openai.Client
	apiKeySet  bool
	limiter    *rate.Limiter
	chatModel  string
	imageModel string
	templates  Templates
}

func New(opts Options) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		api:        openai.NewClient(reqOpts...),
		apiKeySet:  strings.TrimSpace(opts.APIKey) != "",
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		chatModel:  firstNonEmpty(opts.ChatModel, constants.OpenAIChatModel),
		imageModel: firstNonEmpty(opts.ImageModel, constants.OpenAIImageModel),
		templates:  opts.Templates,
	}
}

func (c *Client) ready(ctx context.Context) error {
	if !c.apiKeySet {
		return fmt.Errorf("%s not set", constants.EnvOpenAIAPIKey)
	}
	return c.limiter.Wait(ctx)
}

// Generate asks the chat model to narrate and score a round.
func (c *Client) Generate(ctx context.Context, oc outcome.Context) (*outcome.Proposal, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(c.templates, oc)),
		},
		MaxCompletionTokens: openai.Int(1200),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return ParseProposal(resp.Choices[0].Message.Content)
}

// RenderImage generates one PNG for prompt.
func (c *Client) RenderImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openai.ImageModel(c.imageModel),
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize(constants.OpenAIImageSizeDefault),
		Quality: openai.ImageGenerateParamsQuality(constants.OpenAIImageQualityDefault),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai returned no image data")
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return img, nil
}
