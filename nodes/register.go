package nodes

import "github.com/skillsenselab/dreamflow/node"

// Register installs the built-in handlers under their topology names.
func Register(r *node.Registry) {
	r.Register("document-fetcher", func() node.Handler { return &DocumentFetcher{} })
	r.Register("prompt-model", func() node.Handler { return &PromptModel{} })
	r.Register("gpt-client", func() node.Handler { return &GPTClient{} })
	r.Register("evaluation-model", func() node.Handler { return &EvaluationModel{} })
}
