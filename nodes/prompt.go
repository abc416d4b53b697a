package nodes

import (
	"context"
	"os"
	"sort"
	"strings"
	"text/template"

	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/node"
)

// defaultPromptTemplate grounds the model in the latest documentation
// before stating the user's instructions.
const defaultPromptTemplate = `You are an expert pipeline developer.
Use only constructs shown in the documentation below.

# Documentation

{{.Documentation}}

# Instructions

Write a pipeline definition that satisfies the following request.
Respond with a single YAML document and nothing else.

{{.Instructions}}
`

// PromptModel renders the model prompt for each user request. It keeps
// the latest RepoContents broadcast as its documentation state; user
// prompts arriving before any documentation fail onto the error
// output.
type PromptModel struct {
	tmpl   *template.Template
	output string
	docs   *RepoContents
}

func (p *PromptModel) Init(ctx context.Context, params node.Params) error {
	text := defaultPromptTemplate
	if path := params.String("template_file", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return apperrors.Validation("prompt-model: reading template_file").WithCause(err)
		}
		text = string(data)
	}

	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return apperrors.Validation("prompt-model: parsing template").WithCause(err)
	}
	p.tmpl = tmpl
	p.output = params.String("output", "generated_prompt")
	return nil
}

func (p *PromptModel) Step(ctx context.Context, sc *node.StepContext) error {
	if sc.Record == nil {
		return nil
	}

	switch sc.Source {
	case "repo_contents":
		var docs RepoContents
		if err := sc.Record.Decode(&docs); err != nil {
			return apperrors.Processing("prompt-model", "malformed documentation snapshot").WithCause(err)
		}
		p.docs = &docs
		sc.Log.Info("documentation refreshed", map[string]any{
			"repo":  docs.Organization + "/" + docs.Repo,
			"files": len(docs.Contents),
		})
		return nil
	default:
		var req PromptRequest
		if err := sc.Record.Decode(&req); err != nil {
			return apperrors.Processing("prompt-model", "malformed prompt request").WithCause(err)
		}
		return p.render(ctx, sc, req)
	}
}

func (p *PromptModel) render(ctx context.Context, sc *node.StepContext, req PromptRequest) error {
	if p.docs == nil {
		return apperrors.Processing("prompt-model",
			"documentation not yet available, please retry shortly")
	}

	var sb strings.Builder
	err := p.tmpl.Execute(&sb, map[string]string{
		"Instructions":  req.Prompt,
		"Documentation": p.documentation(),
	})
	if err != nil {
		return apperrors.Processing("prompt-model", "rendering prompt").WithCause(err)
	}

	return sc.Emit(ctx, p.output, GeneratedPrompt{
		Prompt:  sb.String(),
		Attempt: 1,
	})
}

// documentation joins the tracked files in stable order.
func (p *PromptModel) documentation() string {
	paths := make([]string, 0, len(p.docs.Contents))
	for path := range p.docs.Contents {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, path := range paths {
		sb.WriteString("## " + path + "\n\n")
		sb.WriteString(p.docs.Contents[path])
		sb.WriteString("\n\n")
	}
	return sb.String()
}
