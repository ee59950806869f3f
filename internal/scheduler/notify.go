package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/chris/tasky/internal/db"
)

// Notifier tells a user about a materialized task.
type Notifier interface {
	Notify(ctx context.Context, user *db.User, content string) error
}

// DirectMessenger sends a private message to users it can reach. It
// reports false when the user has no route through it.
type DirectMessenger interface {
	SendDM(user *db.User, content string) (bool, error)
}

// Delivery tries a direct message first, then the webhook, then the log.
type Delivery struct {
	DM         DirectMessenger
	WebhookURL string
	Client     *http.Client
}

func (d *Delivery) Notify(ctx context.Context, user *db.User, content string) error {
	label := "notify[" + user.ID + "]"
	if d.DM != nil {
		sent, err := d.DM.SendDM(user, content)
		if err != nil {
			log.Printf("%s: DM send failed: %v", label, err)
		} else if sent {
			return nil
		}
	}
	if d.WebhookURL != "" {
		if err := d.postWebhook(ctx, content); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil
	}
	log.Printf("%s: no delivery method available (no DM route and no webhook): %s", label, content)
	return nil
}

func (d *Delivery) postWebhook(ctx context.Context, content string) error {
	payload := map[string]string{"content": content}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier only logs. Used when nothing else is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, user *db.User, content string) error {
	log.Printf("notify[%s]: %s", user.ID, content)
	return nil
}
