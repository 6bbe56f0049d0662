package model

// WebhookEventType is the name of a GitHub event that triggered a workflow run
type WebhookEventType string

const (
	EventTypePullRequest       WebhookEventType = "pull_request"
	EventTypePullRequestTarget WebhookEventType = "pull_request_target"
	EventTypePush              WebhookEventType = "push"
)

// WebhookEvent is a GitHub event delivered to a CI job as a JSON file
type WebhookEvent struct {
	Type WebhookEventType // GITHUB_EVENT_NAME
	Path string           // GITHUB_EVENT_PATH
}

// IsPullRequest reports whether the event carries a pull request
func (e *WebhookEvent) IsPullRequest() bool {
	return e.Type == EventTypePullRequest || e.Type == EventTypePullRequestTarget
}

// IsSupportedEvent reports whether the event can be turned into a payload
func (e *WebhookEvent) IsSupportedEvent() bool {
	return e.Path != "" && (e.IsPullRequest() || e.Type == EventTypePush)
}
