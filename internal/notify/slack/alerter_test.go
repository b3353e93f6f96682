package slack_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/leasekeep/internal/domain"
	lkslack "github.com/gosuda/leasekeep/internal/notify/slack"
)

type mockSlackAPI struct {
	channel string
	opts    []slacklib.MsgOption
	err     error
}

func (m *mockSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slacklib.MsgOption) (ch, ts string, err error) {
	m.channel = channelID
	m.opts = options
	if m.err != nil {
		return "", "", m.err
	}
	return channelID, "1700000000.000100", nil
}

func failedJob() *domain.Notification {
	return &domain.Notification{
		ID:        uuid.New(),
		Kind:      domain.NotificationPaymentReceived,
		Recipient: "ana@example.com",
		Status:    domain.NotificationStatusFailed,
		Attempts:  5,
		LastError: "provider returned 502",
	}
}

func TestAlerter_NotificationFailed(t *testing.T) {
	t.Parallel()

	t.Run("posts to configured channel", func(t *testing.T) {
		t.Parallel()
		api := &mockSlackAPI{}
		a := lkslack.NewAlerter(api, "C-OPS")

		require.NoError(t, a.NotificationFailed(t.Context(), failedJob()))
		assert.Equal(t, "C-OPS", api.channel)
		assert.Len(t, api.opts, 2)
	})

	t.Run("wraps api error", func(t *testing.T) {
		t.Parallel()
		api := &mockSlackAPI{err: errors.New("channel_not_found")}
		a := lkslack.NewAlerter(api, "C-OPS")

		err := a.NotificationFailed(t.Context(), failedJob())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel_not_found")
	})
}

func TestBuildFailureBlocks(t *testing.T) {
	t.Parallel()

	n := failedJob()
	blocks := lkslack.BuildFailureBlocks(n)
	require.Len(t, blocks, 2)
	assert.Equal(t, slacklib.MBTSection, blocks[0].BlockType())
	assert.Equal(t, slacklib.MBTContext, blocks[1].BlockType())

	n.LastError = ""
	assert.Len(t, lkslack.BuildFailureBlocks(n), 1)
}
