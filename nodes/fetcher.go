package nodes

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/node"
	"github.com/skillsenselab/dreamflow/util"
)

const defaultGitHubAPI = "https://api.github.com"

// DocumentFetcher tracks one repository branch and broadcasts its
// documentation files as RepoContents. It refreshes on push events
// from the github_event dataset and on the node's interval; unchanged
// contents are not re-emitted.
type DocumentFetcher struct {
	organization string
	repo         string
	branch       string
	files        []string
	token        string
	apiBase      string
	output       string
	maxRetries   uint64

	client *http.Client
	last   map[string]string
}

func (f *DocumentFetcher) Init(ctx context.Context, params node.Params) error {
	f.organization = params.String("organization", "")
	f.repo = params.String("repo", "")
	f.branch = params.String("branch", "main")
	f.files = params.Strings("files")
	f.output = params.String("output", "repo_contents")
	f.apiBase = params.String("api_base_url", defaultGitHubAPI)
	f.maxRetries = uint64(params.Int("max_retries", 5))
	f.token = os.Getenv("GITHUB_ACCESS_TOKEN")

	if f.organization == "" || f.repo == "" {
		return apperrors.Validation("document-fetcher requires organization and repo params")
	}
	if len(f.files) == 0 {
		return apperrors.Validation("document-fetcher requires a files param")
	}

	f.client = &http.Client{Timeout: 30 * time.Second}
	logger.Debug("document fetcher configured", map[string]any{
		"repo":  f.organization + "/" + f.repo,
		"token": util.MaskSecret(f.token, 4),
	})
	return nil
}

func (f *DocumentFetcher) Step(ctx context.Context, sc *node.StepContext) error {
	if sc.Record != nil {
		var event GitHubEvent
		if err := sc.Record.Decode(&event); err != nil {
			return apperrors.Processing("document-fetcher", "malformed github event").WithCause(err)
		}
		if !f.matches(event) {
			return nil
		}
		sc.Log.Info("push event received, refreshing documentation")
	}
	return f.refresh(ctx, sc)
}

func (f *DocumentFetcher) matches(event GitHubEvent) bool {
	return event.Repository.Organization == f.organization &&
		event.Repository.Name == f.repo &&
		event.Ref == "refs/heads/"+f.branch
}

func (f *DocumentFetcher) refresh(ctx context.Context, sc *node.StepContext) error {
	contents, err := f.download(ctx)
	if err != nil {
		return apperrors.Processing("document-fetcher",
			fmt.Sprintf("fetching %s/%s@%s", f.organization, f.repo, f.branch)).WithCause(err)
	}
	if maps.Equal(contents, f.last) {
		return nil
	}
	f.last = contents

	sc.Log.Info("documentation updated", map[string]any{
		"repo":  f.organization + "/" + f.repo,
		"files": len(contents),
	})
	return sc.EmitKeyed(ctx, f.output, "", RepoContents{
		Organization: f.organization,
		Repo:         f.repo,
		Branch:       f.branch,
		Contents:     contents,
		FetchedAt:    time.Now().UTC(),
	})
}

// download fetches every tracked file, retrying transient failures
// with exponential backoff per file.
func (f *DocumentFetcher) download(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.files))
	for _, path := range f.files {
		var body []byte
		op := func() error {
			b, err := f.fetchFile(ctx, path)
			if err != nil {
				return err
			}
			body = b
			return nil
		}
		bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries)
		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			return nil, err
		}
		out[path] = string(body)
	}
	return out, nil
}

func (f *DocumentFetcher) fetchFile(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		f.apiBase, f.organization, f.repo, path, f.branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw+json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("github returned %d for %s", resp.StatusCode, path))
	default:
		return nil, fmt.Errorf("github returned %d for %s", resp.StatusCode, path)
	}
}
