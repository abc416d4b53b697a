package nodes

import (
	"context"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/node"
)

const defaultMaxAttempts = 3

// EvaluationModel checks each model response for a well-formed pipeline
// document. Passing responses terminate on final_response; failing ones
// re-enter the loop as a fresh GeneratedPrompt carrying the critique,
// until max_attempts is exhausted and the record fails onto the error
// output.
type EvaluationModel struct {
	maxAttempts int
	required    []string
	resultOut   string
	feedbackOut string
}

func (e *EvaluationModel) Init(ctx context.Context, params node.Params) error {
	e.maxAttempts = params.Int("max_attempts", defaultMaxAttempts)
	if e.maxAttempts < 1 {
		return apperrors.Validation("evaluation-model: max_attempts must be at least 1")
	}
	e.required = params.Strings("required_sections")
	if len(e.required) == 0 {
		e.required = []string{"pipeline"}
	}
	e.resultOut = params.String("result_output", "final_response")
	e.feedbackOut = params.String("feedback_output", "generated_prompt")
	return nil
}

func (e *EvaluationModel) Step(ctx context.Context, sc *node.StepContext) error {
	if sc.Record == nil {
		return nil
	}
	var resp ModelResponse
	if err := sc.Record.Decode(&resp); err != nil {
		return apperrors.Processing("evaluation-model", "malformed model response").WithCause(err)
	}

	critique := e.evaluate(resp.Dream)
	if critique == "" {
		sc.Log.Info("response passed evaluation", map[string]any{"attempt": resp.Attempt})
		return sc.Emit(ctx, e.resultOut, FinalResponse{
			Dream:    extractDocument(resp.Dream),
			Attempts: resp.Attempt,
		})
	}

	if resp.Attempt < e.maxAttempts {
		sc.Log.Warn("response failed evaluation, retrying", map[string]any{
			"attempt":  resp.Attempt,
			"critique": critique,
		})
		return sc.Emit(ctx, e.feedbackOut, GeneratedPrompt{
			Prompt:   resp.Prompt,
			Attempt:  resp.Attempt + 1,
			Critique: critique,
		})
	}

	return apperrors.Processing("evaluation-model",
		fmt.Sprintf("generated pipeline failed evaluation after %d attempts", resp.Attempt)).
		WithDetail("critique", critique)
}

// evaluate returns an empty string when the response holds a valid
// pipeline document, or a critique describing what is wrong.
func (e *EvaluationModel) evaluate(dream string) string {
	doc := extractDocument(dream)
	if strings.TrimSpace(doc) == "" {
		return "the response contains no YAML document"
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(doc), &parsed); err != nil {
		return "the response is not valid YAML: " + err.Error()
	}

	var missing []string
	for _, section := range e.required {
		if _, ok := parsed[section]; !ok {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return "the document is missing required sections: " + strings.Join(missing, ", ")
	}
	return ""
}

// extractDocument strips markdown code fences when the model wrapped
// its answer in one.
func extractDocument(dream string) string {
	trimmed := strings.TrimSpace(dream)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```yaml")
	trimmed = strings.TrimPrefix(trimmed, "```yml")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.LastIndex(trimmed, "```"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.TrimSpace(trimmed)
}
