package nodes

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/node"
	"github.com/skillsenselab/dreamflow/resilience"
)

// ChatCompleter is the slice of the OpenAI client the GPT node needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GPTClient sends generated prompts to the OpenAI chat completions API
// and emits the model output. Calls go through a circuit breaker so a
// failing upstream fails fast instead of stalling the pipeline; the
// fast failures still flow to the node's error output per record.
type GPTClient struct {
	// Client may be prewired for tests; Init builds one from
	// OPENAI_API_KEY when nil.
	Client ChatCompleter

	model       string
	maxTokens   int
	temperature float32
	output      string
	breaker     *resilience.CircuitBreaker
}

func (g *GPTClient) Init(ctx context.Context, params node.Params) error {
	if g.Client == nil {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return apperrors.Validation("gpt-client requires OPENAI_API_KEY")
		}
		g.Client = openai.NewClient(key)
	}

	g.model = params.String("model", openai.GPT4)
	g.maxTokens = params.Int("max_tokens", 2000)
	g.temperature = float32(params.Float("temperature", 0.2))
	g.output = params.String("output", "llm_response")
	g.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"))
	return nil
}

func (g *GPTClient) Step(ctx context.Context, sc *node.StepContext) error {
	if sc.Record == nil {
		return nil
	}
	var prompt GeneratedPrompt
	if err := sc.Record.Decode(&prompt); err != nil {
		return apperrors.Processing("gpt-client", "malformed generated prompt").WithCause(err)
	}

	content := prompt.Prompt
	if prompt.Critique != "" {
		content += "\n\n# Reviewer feedback on your previous attempt\n\n" + prompt.Critique
	}

	var resp openai.ChatCompletionResponse
	err := g.breaker.Execute(func() error {
		var callErr error
		resp, callErr = g.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			MaxTokens:   g.maxTokens,
			Temperature: g.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: content},
			},
		})
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return apperrors.ExternalService("openai", err)
		}
		return apperrors.Processing("gpt-client", "chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return apperrors.Processing("gpt-client", "model returned no choices")
	}

	sc.Log.Debug("model response received", map[string]any{
		"model":   g.model,
		"attempt": prompt.Attempt,
	})
	return sc.Emit(ctx, g.output, ModelResponse{
		Dream:   resp.Choices[0].Message.Content,
		Prompt:  prompt.Prompt,
		Attempt: prompt.Attempt,
	})
}
