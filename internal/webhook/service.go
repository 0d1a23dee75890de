package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// EventUpload is fired after a successful upload.
const EventUpload = "upload"

// EventDelete is fired after a record deletion.
const EventDelete = "delete"

// ValidEvents lists the events webhooks may subscribe to.
var ValidEvents = []string{EventUpload, EventDelete}

const deliveryTimeout = 10 * time.Second

// payload is the JSON body POSTed to webhook targets.
type payload struct {
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Service contains business logic for webhook management and delivery.
type Service struct {
	repo   *Repository
	client *http.Client
}

// NewService creates a new webhook Service.
func NewService(repo *Repository) *Service {
	return &Service{
		repo:   repo,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Create registers a new webhook.
func (s *Service) Create(ctx context.Context, userID, url string, events []string, secret *string) (*Webhook, error) {
	return s.repo.Create(ctx, userID, url, events, secret)
}

// ListByUser returns the user's webhooks.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Webhook, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes a webhook owned by the user.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.repo.Delete(ctx, id, userID)
}

// DispatchUpload delivers the upload event to every matching webhook of the
// user in a detached goroutine. Failures are logged, never surfaced: by the
// time dispatch runs the upload response is already committed.
func (s *Service) DispatchUpload(userID string, data interface{}) {
	if userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hooks, err := s.repo.ListByUser(ctx, userID)
		if err != nil {
			log.Printf("webhook: list for user %s: %v", userID, err)
			return
		}
		for _, wh := range hooks {
			if err := s.deliver(ctx, wh, EventUpload, data); err != nil {
				log.Printf("webhook: deliver %s to %s: %v", wh.ID, wh.URL, err)
			}
		}
	}()
}

// deliver POSTs one event to one webhook, skipping inactive hooks and
// unsubscribed events.
func (s *Service) deliver(ctx context.Context, wh *Webhook, event string, data interface{}) error {
	if !wh.IsActive || !subscribed(wh.Events, event) {
		return nil
	}

	body, err := json.Marshal(payload{
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PixEdge-Webhook/1.0")
	if wh.Secret != nil && *wh.Secret != "" {
		req.Header.Set("X-PixEdge-Signature", Sign(body, *wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("target responded %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 of the payload with the
// webhook's secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func subscribed(events []string, event string) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}
