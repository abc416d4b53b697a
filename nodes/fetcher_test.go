package nodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/dreamflow/dataset"
	"github.com/skillsenselab/dreamflow/node"
)

// fakeGitHub serves raw file contents the way the contents API does
// with the raw accept header.
type fakeGitHub struct {
	mu    sync.Mutex
	files map[string]string
	hits  int
}

func (g *fakeGitHub) set(path, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[path] = content
}

func (g *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.hits++

		// /repos/{org}/{repo}/contents/{path}
		parts := strings.SplitN(r.URL.Path, "/contents/", 2)
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		content, ok := g.files[parts[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(content))
	})
}

func TestDocumentFetcher(t *testing.T) {
	gh := &fakeGitHub{files: map[string]string{"docs/guide.md": "v1"}}
	srv := httptest.NewServer(gh.handler())
	defer srv.Close()

	events := newDS("github_event")
	out := newDS("repo_contents")
	ctx := context.Background()

	startNode(t, node.Config{
		Name:    "document-fetcher",
		Handler: &DocumentFetcher{},
		Inputs:  []node.Input{{Name: "github_event", Cursor: events.Cursor("document-fetcher")}},
		Outputs: map[string]*dataset.Dataset{"repo_contents": out},
		Interval: 30 * time.Millisecond,
		Params: node.Params{
			"organization": "acme",
			"repo":         "pipelines",
			"branch":       "main",
			"files":        []any{"docs/guide.md"},
			"api_base_url": srv.URL,
			"max_retries":  1,
		},
	})

	// The startup refresh publishes the initial snapshot.
	cur := out.Cursor("check")
	rec := mustNext(t, out, cur)
	var docs RepoContents
	if err := rec.Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docs.Contents["docs/guide.md"] != "v1" {
		t.Errorf("contents %v", docs.Contents)
	}
	if docs.Organization != "acme" || docs.Repo != "pipelines" || docs.Branch != "main" {
		t.Errorf("snapshot metadata %+v", docs)
	}

	// Unchanged contents are not re-emitted on later ticks.
	time.Sleep(120 * time.Millisecond)
	if end, _ := out.End(ctx); end != 1 {
		t.Errorf("unchanged contents re-emitted, log length %d", end)
	}

	// A push event for another branch is ignored.
	other := GitHubEvent{Ref: "refs/heads/dev"}
	other.Repository.Name = "pipelines"
	other.Repository.Organization = "acme"
	if _, err := events.AppendJSON(ctx, "", other); err != nil {
		t.Fatal(err)
	}

	// A matching push event after a content change publishes again.
	gh.set("docs/guide.md", "v2")
	match := GitHubEvent{Ref: "refs/heads/main"}
	match.Repository.Name = "pipelines"
	match.Repository.Organization = "acme"
	if _, err := events.AppendJSON(ctx, "", match); err != nil {
		t.Fatal(err)
	}

	rec = mustNext(t, out, cur)
	if err := rec.Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docs.Contents["docs/guide.md"] != "v2" {
		t.Errorf("refreshed contents %v", docs.Contents)
	}
}

func TestDocumentFetcherRequiresParams(t *testing.T) {
	f := &DocumentFetcher{}
	err := f.Init(context.Background(), node.Params{"repo": "pipelines"})
	if err == nil {
		t.Error("missing organization accepted")
	}
	err = f.Init(context.Background(), node.Params{
		"organization": "acme", "repo": "pipelines",
	})
	if err == nil {
		t.Error("missing files accepted")
	}
}
