package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"meetupStreakAPI/internal/types/notification"
)

// DeviceRemover forgets tokens FCM reports as unregistered.
type DeviceRemover interface {
	DeleteDevice(ctx context.Context, token string) error
}

type FCMService struct {
	client  *messaging.Client
	devices DeviceRemover
}

// NewFCMService prefers base64 credentials from FCM_SERVICE_ACCOUNT_JSON and
// falls back to the service account file at localFilePath. devices may be nil.
func NewFCMService(ctx context.Context, localFilePath string, devices DeviceRemover) (*FCMService, error) {
	var opt option.ClientOption

	encodedCreds := os.Getenv("FCM_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("FCM Service: Initializing from FCM_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("FCM Service: Initializing from local file: %s.", localFilePath)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, devices: devices}, nil
}

// SendPush sends one message per token; the batch endpoint is not used.
// It fails only when every token failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	successCount := 0
	failureCount := 0

	for _, token := range tokens {
		message := &messaging.Message{
			Token: token.Token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: stringData,
		}

		switch token.Platform {
		case "ios":
			message.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		case "web":
		default:
			message.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			failureCount++
			if messaging.IsUnregistered(err) {
				s.prune(ctx, token)
				continue
			}
			log.Printf("FCM: Failed to send to member %s: %v", token.MemberID, err)
		} else {
			successCount++
		}
	}

	log.Printf("FCM: Sent %d messages, %d failed", successCount, failureCount)

	if successCount == 0 && failureCount > 0 {
		return fmt.Errorf("all push notifications failed")
	}

	return nil
}

func (s *FCMService) prune(ctx context.Context, token notification.DeviceToken) {
	if s.devices == nil {
		return
	}
	if err := s.devices.DeleteDevice(ctx, token.Token); err != nil {
		log.Printf("FCM: Failed to remove stale token of member %s: %v", token.MemberID, err)
		return
	}
	log.Printf("FCM: Removed unregistered %s token of member %s", token.Platform, token.MemberID)
}
