package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skillsenselab/dreamflow/dataset"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/node"
)

func testLogger() *logger.Logger { return logger.NewDefault("test") }

func newDS(name string) *dataset.Dataset {
	return dataset.New(name, dataset.NewMemoryLog(), testLogger())
}

// startNode runs a handler under a real runtime wired to the given
// datasets and fails the test if it does not reach Running.
func startNode(t *testing.T, cfg node.Config) *node.Runtime {
	t.Helper()
	cfg.PollWait = 10 * time.Millisecond
	cfg.Log = testLogger()
	rt, err := node.NewRuntime(cfg)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	rt.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})

	deadline := time.After(2 * time.Second)
	for rt.State() != node.StateRunning {
		select {
		case <-deadline:
			t.Fatalf("node %s never started: %v", cfg.Name, rt.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
	return rt
}

func mustNext(t *testing.T, ds *dataset.Dataset, cur *dataset.Cursor) dataset.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rec, err := cur.Next(ctx)
	if err != nil {
		t.Fatalf("no record arrived on %s: %v", ds.Name(), err)
	}
	cur.Commit()
	return rec
}

func TestPromptModelRendersWithDocumentation(t *testing.T) {
	docs := newDS("repo_contents")
	prompts := newDS("user_prompt")
	out := newDS("generated_prompt")
	errOut := newDS("prompt_error")
	ctx := context.Background()

	startNode(t, node.Config{
		Name:    "prompt-model",
		Handler: &PromptModel{},
		Inputs: []node.Input{
			{Name: "repo_contents", Cursor: docs.Cursor("prompt-model")},
			{Name: "user_prompt", Cursor: prompts.Cursor("prompt-model")},
		},
		Outputs: map[string]*dataset.Dataset{
			"generated_prompt": out,
			"prompt_error":     errOut,
		},
		ErrorOutput: "prompt_error",
	})

	// A prompt before any documentation fails onto the error output.
	if _, err := prompts.AppendJSON(ctx, "cid-early", PromptRequest{Prompt: "too soon"}); err != nil {
		t.Fatal(err)
	}
	errCur := errOut.Cursor("check")
	rec := mustNext(t, errOut, errCur)
	if rec.Key != "cid-early" {
		t.Errorf("error record key %q", rec.Key)
	}

	if _, err := docs.AppendJSON(ctx, "", RepoContents{
		Organization: "acme",
		Repo:         "pipelines",
		Branch:       "main",
		Contents:     map[string]string{"docs/guide.md": "datasets connect nodes"},
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, err := prompts.AppendJSON(ctx, "cid-1", PromptRequest{Prompt: "write hello world in python"}); err != nil {
		t.Fatal(err)
	}

	rec = mustNext(t, out, out.Cursor("check"))
	if rec.Key != "cid-1" {
		t.Errorf("output key %q", rec.Key)
	}
	var gp GeneratedPrompt
	if err := rec.Decode(&gp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gp.Attempt != 1 {
		t.Errorf("attempt %d", gp.Attempt)
	}
	for _, want := range []string{"write hello world in python", "datasets connect nodes", "docs/guide.md"} {
		if !strings.Contains(gp.Prompt, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
}

type fakeCompleter struct {
	replies []string
	calls   int
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: reply}},
		},
	}, nil
}

func TestGPTClientEmitsModelResponse(t *testing.T) {
	in := newDS("generated_prompt")
	out := newDS("llm_response")
	errOut := newDS("prompt_error")
	ctx := context.Background()

	fake := &fakeCompleter{replies: []string{"pipeline:\n  nodes: {}"}}
	startNode(t, node.Config{
		Name:    "gpt-client",
		Handler: &GPTClient{Client: fake},
		Inputs:  []node.Input{{Name: "generated_prompt", Cursor: in.Cursor("gpt-client")}},
		Outputs: map[string]*dataset.Dataset{
			"llm_response": out,
			"prompt_error": errOut,
		},
		ErrorOutput: "prompt_error",
		Params:      node.Params{"model": "gpt-4", "max_tokens": 100},
	})

	if _, err := in.AppendJSON(ctx, "cid-1", GeneratedPrompt{Prompt: "build a pipeline", Attempt: 2}); err != nil {
		t.Fatal(err)
	}

	rec := mustNext(t, out, out.Cursor("check"))
	if rec.Key != "cid-1" {
		t.Errorf("key %q", rec.Key)
	}
	var resp ModelResponse
	if err := rec.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Dream != "pipeline:\n  nodes: {}" {
		t.Errorf("dream %q", resp.Dream)
	}
	if resp.Prompt != "build a pipeline" || resp.Attempt != 2 {
		t.Errorf("prompt/attempt not echoed: %+v", resp)
	}
}

func TestGPTClientFailureGoesToErrorOutput(t *testing.T) {
	in := newDS("generated_prompt")
	out := newDS("llm_response")
	errOut := newDS("prompt_error")
	ctx := context.Background()

	fake := &fakeCompleter{err: errors.New("connection refused")}
	startNode(t, node.Config{
		Name:    "gpt-client",
		Handler: &GPTClient{Client: fake},
		Inputs:  []node.Input{{Name: "generated_prompt", Cursor: in.Cursor("gpt-client")}},
		Outputs: map[string]*dataset.Dataset{
			"llm_response": out,
			"prompt_error": errOut,
		},
		ErrorOutput: "prompt_error",
	})

	if _, err := in.AppendJSON(ctx, "cid-1", GeneratedPrompt{Prompt: "p", Attempt: 1}); err != nil {
		t.Fatal(err)
	}

	rec := mustNext(t, errOut, errOut.Cursor("check"))
	if rec.Key != "cid-1" {
		t.Errorf("error key %q", rec.Key)
	}
	var event node.ErrorEvent
	if err := rec.Decode(&event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Stage != "gpt-client" {
		t.Errorf("stage %q", event.Stage)
	}
}

func TestEvaluate(t *testing.T) {
	e := &EvaluationModel{required: []string{"pipeline"}}

	if critique := e.evaluate("```yaml\npipeline:\n  nodes: {}\n```"); critique != "" {
		t.Errorf("valid document rejected: %s", critique)
	}
	if critique := e.evaluate("here you go: {{{"); critique == "" {
		t.Error("invalid YAML accepted")
	}
	if critique := e.evaluate("nodes: {}"); critique == "" {
		t.Error("missing section accepted")
	}
	if critique := e.evaluate(""); critique == "" {
		t.Error("empty response accepted")
	}
}

func TestExtractDocument(t *testing.T) {
	cases := map[string]string{
		"pipeline: {}":                          "pipeline: {}",
		"```yaml\npipeline: {}\n```":            "pipeline: {}",
		"```\npipeline: {}\n```":                "pipeline: {}",
		"  ```yml\npipeline: {}\n```  ":         "pipeline: {}",
	}
	for in, want := range cases {
		if got := extractDocument(in); got != want {
			t.Errorf("extractDocument(%q) = %q, want %q", in, got, want)
		}
	}
}
