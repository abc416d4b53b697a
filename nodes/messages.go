package nodes

import "time"

// PromptRequest is the entry payload the gateway appends for each
// inbound request.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// GitHubEvent is a push webhook event on the github_event dataset. The
// fetcher refreshes its documentation when the event matches the
// tracked repository and branch.
type GitHubEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name         string `json:"name"`
		Organization string `json:"organization"`
	} `json:"repository"`
}

// RepoContents is the broadcast documentation snapshot on the
// repo_contents dataset. It is state, not a per-request message, so it
// carries no correlation key.
type RepoContents struct {
	Organization string            `json:"organization"`
	Repo         string            `json:"repo"`
	Branch       string            `json:"branch"`
	Contents     map[string]string `json:"contents"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

// GeneratedPrompt is the rendered model input on the generated_prompt
// dataset. The attempt counter rides along so the feedback loop stays
// bounded; Critique carries the evaluator's feedback on retries.
type GeneratedPrompt struct {
	Prompt   string `json:"prompt"`
	Attempt  int    `json:"attempt"`
	Critique string `json:"critique,omitempty"`
}

// ModelResponse is the raw model output on the llm_response dataset.
// The originating prompt and attempt are echoed so the evaluator can
// re-emit without reconstructing them.
type ModelResponse struct {
	Dream   string `json:"dream"`
	Prompt  string `json:"prompt"`
	Attempt int    `json:"attempt"`
}

// FinalResponse is the fulfilled result on the final_response dataset.
type FinalResponse struct {
	Dream    string `json:"dream"`
	Attempts int    `json:"attempts"`
}
