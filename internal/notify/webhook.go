package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/untiswatch/untiswatch/internal/config"
)

// deliver sends n to all targets. Errors are logged but do not affect the
// caller.
func (e *Engine) deliver(n Notification, targets []config.Target) {
	for _, t := range targets {
		var err error
		switch t.Type {
		case "slack":
			err = e.sendSlack(t.URL(), n)
		case "teams":
			err = e.sendTeams(t.URL(), n)
		case "http":
			err = e.sendHTTP(t.URL(), n)
		case "telegram":
			err = e.sendTelegram(t, n)
		default:
			slog.Warn("notify: unknown target type — skipping", "type", t.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: delivery failed",
				"type", t.Type,
				"generation", n.Generation,
				"err", err,
			)
		} else {
			slog.Debug("notify: delivered",
				"type", t.Type,
				"generation", n.Generation,
			)
		}
	}
}

func (e *Engine) sendSlack(url string, n Notification) error {
	if url == "" {
		return fmt.Errorf("webhook url is empty")
	}
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", title(n), strings.Join(n.Changes, "\n")),
	})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, n Notification) error {
	if url == "" {
		return fmt.Errorf("webhook url is empty")
	}
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "FFAB40",
		"summary":    title(n),
		"title":      title(n),
		"text":       strings.Join(n.Changes, "<br>"),
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, n Notification) error {
	if url == "" {
		return fmt.Errorf("webhook url is empty")
	}
	body, _ := json.Marshal(n)
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func title(n Notification) string {
	if n.Total == 1 {
		return "Timetable changed: 1 change"
	}
	return fmt.Sprintf("Timetable changed: %d changes", n.Total)
}
