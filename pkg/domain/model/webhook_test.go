package model_test

import (
	"testing"

	"github.com/analogj/capsulecd/pkg/domain/model"
)

func TestWebhookEvent_IsSupportedEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    *model.WebhookEvent
		expected bool
	}{
		{
			name:     "Pull request - supported",
			event:    &model.WebhookEvent{Type: model.EventTypePullRequest, Path: "/tmp/event.json"},
			expected: true,
		},
		{
			name:     "Pull request target - supported",
			event:    &model.WebhookEvent{Type: model.EventTypePullRequestTarget, Path: "/tmp/event.json"},
			expected: true,
		},
		{
			name:     "Push - supported",
			event:    &model.WebhookEvent{Type: model.EventTypePush, Path: "/tmp/event.json"},
			expected: true,
		},
		{
			name:     "Pull request without event file",
			event:    &model.WebhookEvent{Type: model.EventTypePullRequest},
			expected: false,
		},
		{
			name:     "Workflow dispatch",
			event:    &model.WebhookEvent{Type: model.WebhookEventType("workflow_dispatch"), Path: "/tmp/event.json"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.IsSupportedEvent(); got != tt.expected {
				t.Errorf("IsSupportedEvent() = %v, want %v", got, tt.expected)
			}
		})
	}
}
