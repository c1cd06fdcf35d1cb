package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/notification"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*messaging.Message
	failFor  map[string]error
}

func (f *fakeSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	if err, ok := f.failFor[message.Token]; ok {
		return "", err
	}
	return "projects/test/messages/1", nil
}

func TestSendPush_PlatformConfig(t *testing.T) {
	sender := &fakeSender{}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	stale, err := svc.SendPush(context.Background(), []notification.DeviceToken{
		{Token: "android-1", Platform: notification.PlatformAndroid},
		{Token: "ios-1", Platform: notification.PlatformIOS},
	}, "Day 2 unlocked", "Keep going", map[string]any{"currentDay": 2})
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.Len(t, sender.messages, 2)

	android := sender.messages[0]
	assert.Equal(t, "android-1", android.Token)
	require.NotNil(t, android.Android)
	assert.Equal(t, "high", android.Android.Priority)
	assert.Nil(t, android.APNS)
	assert.Equal(t, "2", android.Data["currentDay"])

	ios := sender.messages[1]
	require.NotNil(t, ios.APNS)
	assert.Nil(t, ios.Android)
	assert.Equal(t, "Day 2 unlocked", ios.Notification.Title)
}

func TestSendPush_PartialFailureIsNotAnError(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"bad": errors.New("unavailable")}}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	_, err := svc.SendPush(context.Background(), []notification.DeviceToken{
		{Token: "bad", Platform: notification.PlatformAndroid},
		{Token: "good", Platform: notification.PlatformAndroid},
	}, "t", "b", nil)
	assert.NoError(t, err)
}

func TestSendPush_AllFailed(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"bad": errors.New("unavailable")}}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	_, err := svc.SendPush(context.Background(), []notification.DeviceToken{
		{Token: "bad", Platform: notification.PlatformIOS},
	}, "t", "b", nil)
	assert.Error(t, err)
}

func TestSendPush_NoTokens(t *testing.T) {
	sender := &fakeSender{}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	stale, err := svc.SendPush(context.Background(), nil, "t", "b", nil)
	assert.NoError(t, err)
	assert.Empty(t, stale)
	assert.Empty(t, sender.messages)
}

func TestNewFCMService_MissingCredentials(t *testing.T) {
	_, err := NewFCMService(context.Background(), "", "/nonexistent/serviceAccountKey.json", logger.Nop())
	assert.Error(t, err)

	_, err = NewFCMService(context.Background(), "%%%not-base64", "", logger.Nop())
	assert.Error(t, err)
}
