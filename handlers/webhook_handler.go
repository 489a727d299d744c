package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetupStreakAPI/services"
)

const webhookTolerance = 5 * time.Minute

type clerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type WebhookHandler struct {
	userService *services.UserService
	secret      []byte
	now         func() time.Time
}

// NewWebhookHandler verifies Clerk (svix) signatures with secret, given in
// the "whsec_<base64>" form shown in the Clerk dashboard.
func NewWebhookHandler(userService *services.UserService, secret string) (*WebhookHandler, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("webhook secret is empty")
	}
	return &WebhookHandler{userService: userService, secret: key, now: time.Now}, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verifySignature(r.Header, body); err != nil {
		log.Printf("Invalid webhook signature: %v", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	switch event.Type {
	case "user.created":
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing user id")
			return
		}
		memberID, err := h.userService.ResolveMemberID(r.Context(), data.ID)
		if err != nil {
			log.Printf("Error handling user.created: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
		log.Printf("Provisioned member %s for Clerk user %s", memberID, data.ID)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) verifySignature(header http.Header, body []byte) error {
	id := header.Get("svix-id")
	timestamp := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return errors.New("missing signature headers")
	}

	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}
	sent := time.Unix(sec, 0)
	if d := h.now().Sub(sent); d > webhookTolerance || d < -webhookTolerance {
		return errors.New("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range strings.Fields(signatures) {
		version, encoded, ok := strings.Cut(sig, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
