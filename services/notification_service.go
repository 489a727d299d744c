package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/types/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	devices      store.DeviceStore
	dispatcher   *Dispatcher
	pushProvider PushNotificationProvider
}

func NewNotificationService(devices store.DeviceStore, dispatcher *Dispatcher) *NotificationService {
	return &NotificationService{
		devices:    devices,
		dispatcher: dispatcher,
	}
}

// SetPushProvider injects the FCM client from main.go.
func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.pushProvider = provider
}

var validPlatforms = map[string]bool{"ios": true, "android": true, "web": true}

func (s *NotificationService) RegisterDevice(ctx context.Context, memberID uuid.UUID, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if !validPlatforms[platform] {
		return nil, fmt.Errorf("%w: platform must be ios, android or web", ErrInvalidInput)
	}

	device := notification.DeviceToken{
		MemberID:  memberID,
		Token:     token,
		Platform:  platform,
		CreatedAt: time.Now(),
	}
	if err := s.devices.RegisterDevice(ctx, device); err != nil {
		return nil, err
	}
	return &device, nil
}

// NotifyCalendar pushes n to every registered device of the calendar's
// members. Delivery happens on the dispatcher; without one it runs inline.
func (s *NotificationService) NotifyCalendar(ctx context.Context, n *notification.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	job := &DispatchJob{
		Name: "push:" + string(n.Type),
		Run: func(ctx context.Context) error {
			return s.deliver(ctx, n)
		},
	}

	if s.dispatcher == nil {
		if err := job.Run(ctx); err != nil {
			log.Printf("Push %s for calendar %s failed: %v", n.Type, n.CalendarID, err)
		}
		return
	}
	if s.dispatcher.Dispatch(job) {
		log.Printf("Notification %s for calendar %s queued for dispatch", n.Type, n.CalendarID)
	}
}

func (s *NotificationService) deliver(ctx context.Context, n *notification.Notification) error {
	if s.pushProvider == nil {
		log.Printf("Skipping push %s for calendar %s: no provider", n.Type, n.CalendarID)
		return nil
	}

	tokens, err := s.devices.ListDevicesForCalendar(ctx, n.CalendarID)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]any{"type": string(n.Type), "calendar_id": n.CalendarID.String()}
	for k, v := range n.Data {
		data[k] = v
	}
	return s.pushProvider.SendPush(ctx, tokens, n.Title, n.Body, data)
}
