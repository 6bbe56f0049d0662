package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/analogj/capsulecd/pkg/domain/model"
)

// Notifier posts run outcomes to a Slack incoming webhook
type Notifier struct {
	webhookURL string
}

func New(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL}
}

func (x *Notifier) NotifySuccess(ctx context.Context, data *model.PipelineData) error {
	tag := ""
	if data.ReleaseCommit != nil {
		tag = data.ReleaseCommit.TagName
	}

	return x.post(ctx, &slack.WebhookMessage{
		Text: fmt.Sprintf("Released %s %s", data.RepoFullName(), tag),
		Attachments: []slack.Attachment{
			{
				Color:  "good",
				Fields: fields(data),
			},
		},
	})
}

func (x *Notifier) NotifyFailure(ctx context.Context, data *model.PipelineData, cause error) error {
	return x.post(ctx, &slack.WebhookMessage{
		Text: fmt.Sprintf("Release of %s failed", data.RepoFullName()),
		Attachments: []slack.Attachment{
			{
				Color:  "danger",
				Text:   cause.Error(),
				Fields: fields(data),
			},
		},
	})
}

func (x *Notifier) post(ctx context.Context, msg *slack.WebhookMessage) error {
	if err := slack.PostWebhookContext(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack message")
	}
	ctxlog.From(ctx).Debug("Slack message posted", "text", msg.Text)
	return nil
}

func fields(data *model.PipelineData) []slack.AttachmentField {
	out := []slack.AttachmentField{
		{Title: "Run", Value: data.RunID, Short: true},
	}
	if data.Payload != nil && data.Payload.Number > 0 {
		out = append(out, slack.AttachmentField{Title: "Pull request", Value: fmt.Sprintf("#%d", data.Payload.Number), Short: true})
	}
	if data.ReleaseCommit != nil {
		out = append(out, slack.AttachmentField{Title: "Commit", Value: data.ReleaseCommit.Sha, Short: true})
	}
	return out
}
