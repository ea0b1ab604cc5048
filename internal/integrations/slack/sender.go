package slack

import (
	"context"
	"fmt"
	"strings"

	"concierge-backend/internal/integrations"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// Alerter posts diagnostics to a Slack channel.
type Alerter struct {
	api     *slack.Client
	channel string
}

var _ integrations.Notifier = (*Alerter)(nil)

// NewAlerter creates an Alerter for botToken posting into channelID.
// Extra slack options (for example slack.OptionAPIURL) are passed through.
func NewAlerter(botToken, channelID string, opts ...slack.Option) (*Alerter, error) {
	if botToken == "" {
		return nil, errors.New("slack bot token is empty")
	}
	if channelID == "" {
		return nil, errors.New("slack alert channel is empty")
	}
	return &Alerter{
		api:     slack.New(botToken, opts...),
		channel: channelID,
	}, nil
}

// Notify formats d and posts it to the alert channel.
func (a *Alerter) Notify(ctx context.Context, d integrations.Diagnostic) error {
	return SendMessageToChannel(ctx, a.api, a.channel, FormatDiagnostic(d), "")
}

// FormatDiagnostic renders a diagnostic as Slack mrkdwn text.
func FormatDiagnostic(d integrations.Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":warning: *%s*: %s", d.Component, d.Message)
	if d.Err != nil {
		fmt.Fprintf(&b, "\n```%s```", d.Err.Error())
	}
	for k, v := range d.Fields {
		fmt.Fprintf(&b, "\n• %s: %s", k, v)
	}
	return b.String()
}

// SendMessageToChannel sends a message to a Slack channel.
// If threadTs is provided, the message will be sent as a reply in a thread.
func SendMessageToChannel(ctx context.Context, api *slack.Client, channelID string, text string, threadTs string) error {
	msgOptions := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	if threadTs != "" {
		msgOptions = append(msgOptions, slack.MsgOptionTS(threadTs))
	}

	_, ts, err := api.PostMessageContext(ctx, channelID, msgOptions...)
	if err != nil {
		return errors.Wrapf(err, "failed to post message to Slack channel %s", channelID)
	}
	log.Debug().Str("channel", channelID).Str("ts", ts).Msg("posted slack alert")
	return nil
}
