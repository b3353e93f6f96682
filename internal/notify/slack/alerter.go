// Package slack posts operator alerts about dead-lettered notifications.
package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/notify"
)

// SlackAPI abstracts the subset of the Slack client used by Alerter.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

type Alerter struct {
	api     SlackAPI
	channel string
}

var _ notify.Alerter = (*Alerter)(nil) //nolint:gochecknoglobals // compile-time check

func NewAlerter(api SlackAPI, channel string) *Alerter {
	return &Alerter{api: api, channel: channel}
}

// New builds an Alerter backed by a Slack bot token.
func New(token, channel string) *Alerter {
	return NewAlerter(slacklib.New(token), channel)
}

func (a *Alerter) NotificationFailed(ctx context.Context, n *domain.Notification) error {
	text := fmt.Sprintf("Notification %s (%s) to %s failed after %d attempts", n.ID, n.Kind, n.Recipient, n.Attempts)
	_, _, err := a.api.PostMessageContext(ctx, a.channel,
		slacklib.MsgOptionText(text, false),
		slacklib.MsgOptionBlocks(BuildFailureBlocks(n)...),
	)
	if err != nil {
		return fmt.Errorf("slack.Alerter.NotificationFailed: %w", err)
	}
	return nil
}

// BuildFailureBlocks renders a dead-lettered job as Block Kit blocks.
func BuildFailureBlocks(n *domain.Notification) []slacklib.Block {
	header := fmt.Sprintf("*Notification dead-lettered*\n*Kind:* `%s`\n*Recipient:* %s\n*Attempts:* %d", n.Kind, n.Recipient, n.Attempts)
	blocks := []slacklib.Block{
		slacklib.NewSectionBlock(slacklib.NewTextBlockObject(slacklib.MarkdownType, header, false, false), nil, nil),
	}
	if n.LastError != "" {
		blocks = append(blocks, slacklib.NewContextBlock("",
			slacklib.NewTextBlockObject(slacklib.MarkdownType, "Last error: `"+n.LastError+"`", false, false)))
	}
	return blocks
}
