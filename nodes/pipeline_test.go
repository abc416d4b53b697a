package nodes

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skillsenselab/dreamflow/graph"
	"github.com/skillsenselab/dreamflow/node"
)

// scriptedCompleter returns one canned reply per call.
type scriptedCompleter struct {
	replies []string
	calls   int
}

func (s *scriptedCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	reply := s.replies[s.calls]
	s.calls++
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: reply}},
		},
	}, nil
}

// TestFeedbackLoop drives a built graph through two failed evaluations
// and a passing third attempt: the evaluator re-emits onto
// generated_prompt, the model node reprocesses it like any first-pass
// record, and the final response reports three attempts.
func TestFeedbackLoop(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"not yaml at all {{{",
		"nodes: {}",
		"```yaml\npipeline:\n  nodes: {}\n```",
	}}

	reg := node.NewRegistry()
	reg.Register("prompt-model", func() node.Handler { return &PromptModel{} })
	reg.Register("gpt-client", func() node.Handler { return &GPTClient{Client: completer} })
	reg.Register("evaluation-model", func() node.Handler { return &EvaluationModel{} })

	top := &graph.Topology{
		Name: "feedback",
		Datasets: []graph.DatasetDef{
			{Name: "user_prompt", Entry: true},
			{Name: "repo_contents", Entry: true},
			{Name: "generated_prompt"},
			{Name: "llm_response"},
			{Name: "final_response"},
			{Name: "prompt_error"},
			{Name: "evaluation_error"},
		},
		Nodes: []graph.NodeDef{
			{ID: "prompt-model", Implementation: "prompt-model",
				Inputs:      []string{"repo_contents", "user_prompt"},
				Outputs:     []string{"generated_prompt", "prompt_error"},
				ErrorOutput: "prompt_error"},
			{ID: "gpt-client", Implementation: "gpt-client",
				Inputs:      []string{"generated_prompt"},
				Outputs:     []string{"llm_response", "prompt_error"},
				ErrorOutput: "prompt_error"},
			{ID: "evaluation-model", Implementation: "evaluation-model",
				Inputs:      []string{"llm_response"},
				Outputs:     []string{"final_response", "generated_prompt", "evaluation_error"},
				ErrorOutput: "evaluation_error",
				Params:      map[string]any{"max_attempts": 3}},
		},
	}

	g, err := graph.Build(top, graph.Options{
		Registry:     reg,
		StartTimeout: 5 * time.Second,
		Log:          testLogger(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = g.Stop(stopCtx)
	}()

	docs, _ := g.Dataset("repo_contents")
	if _, err := docs.AppendJSON(ctx, "", RepoContents{
		Organization: "acme", Repo: "pipelines", Branch: "main",
		Contents: map[string]string{"docs/guide.md": "datasets connect nodes"},
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	entry, _ := g.Dataset("user_prompt")
	if _, err := entry.AppendJSON(ctx, "cid-1", PromptRequest{Prompt: "write hello world"}); err != nil {
		t.Fatal(err)
	}

	result, _ := g.Dataset("final_response")
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rec, err := result.Cursor("check").Next(readCtx)
	if err != nil {
		t.Fatalf("final response never arrived: %v", err)
	}

	if rec.Key != "cid-1" {
		t.Errorf("key %q survived the loop, want cid-1", rec.Key)
	}
	var final FinalResponse
	if err := rec.Decode(&final); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if final.Attempts != 3 {
		t.Errorf("attempts %d, want 3", final.Attempts)
	}
	if final.Dream != "pipeline:\n  nodes: {}" {
		t.Errorf("dream %q", final.Dream)
	}
	if completer.calls != 3 {
		t.Errorf("model called %d times, want 3", completer.calls)
	}

	// Neither error dataset saw the request.
	for _, name := range []string{"prompt_error", "evaluation_error"} {
		ds, _ := g.Dataset(name)
		if end, _ := ds.End(ctx); end != 0 {
			t.Errorf("%s has %d records", name, end)
		}
	}
}

// TestFeedbackExhaustion verifies the bounded retry policy: when every
// attempt fails evaluation, the record lands on evaluation_error
// instead of looping forever.
func TestFeedbackExhaustion(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"bad {{{", "bad {{{", "bad {{{", "bad {{{",
	}}

	reg := node.NewRegistry()
	reg.Register("gpt-client", func() node.Handler { return &GPTClient{Client: completer} })
	reg.Register("evaluation-model", func() node.Handler { return &EvaluationModel{} })

	top := &graph.Topology{
		Name: "exhaustion",
		Datasets: []graph.DatasetDef{
			{Name: "generated_prompt", Entry: true},
			{Name: "llm_response"},
			{Name: "final_response"},
			{Name: "prompt_error"},
			{Name: "evaluation_error"},
		},
		Nodes: []graph.NodeDef{
			{ID: "gpt-client", Implementation: "gpt-client",
				Inputs:      []string{"generated_prompt"},
				Outputs:     []string{"llm_response", "prompt_error"},
				ErrorOutput: "prompt_error"},
			{ID: "evaluation-model", Implementation: "evaluation-model",
				Inputs:      []string{"llm_response"},
				Outputs:     []string{"final_response", "generated_prompt", "evaluation_error"},
				ErrorOutput: "evaluation_error",
				Params:      map[string]any{"max_attempts": 3}},
		},
	}

	g, err := graph.Build(top, graph.Options{
		Registry:     reg,
		StartTimeout: 5 * time.Second,
		Log:          testLogger(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = g.Stop(stopCtx)
	}()

	entry, _ := g.Dataset("generated_prompt")
	if _, err := entry.AppendJSON(ctx, "cid-1", GeneratedPrompt{Prompt: "p", Attempt: 1}); err != nil {
		t.Fatal(err)
	}

	errDS, _ := g.Dataset("evaluation_error")
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rec, err := errDS.Cursor("check").Next(readCtx)
	if err != nil {
		t.Fatalf("exhaustion never surfaced: %v", err)
	}
	if rec.Key != "cid-1" {
		t.Errorf("error key %q", rec.Key)
	}
	if completer.calls != 3 {
		t.Errorf("model called %d times, want 3", completer.calls)
	}
}
