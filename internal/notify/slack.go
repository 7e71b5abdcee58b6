package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sentinelscan/internal/logger"
	"sentinelscan/pkg/models"
)

// Config configures the Slack notifier.
type Config struct {
	WebhookURL  string
	MinSeverity string
	Channel     string
	Timeout     time.Duration
}

// SlackNotifier posts high-severity detections to a Slack webhook. Delivery
// failures are logged and never escalate into the session.
type SlackNotifier struct {
	url         string
	channel     string
	minSeverity string
	client      *http.Client
}

// NewSlackNotifier creates a notifier.
func NewSlackNotifier(cfg Config) (*SlackNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is empty")
	}
	minSeverity := strings.ToUpper(cfg.MinSeverity)
	if minSeverity == "" {
		minSeverity = models.SeverityHigh
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "#alerts"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		url:         cfg.WebhookURL,
		channel:     channel,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Notify sends one detection if its severity meets the configured minimum.
func (n *SlackNotifier) Notify(det models.Detection) {
	if models.SeverityRank(det.Severity) < models.SeverityRank(n.minSeverity) {
		return
	}

	payload := map[string]string{
		"channel": n.channel,
		"text":    formatAlert(det),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Failed to encode slack alert: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("Failed to create slack request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warnf("Slack alert failed: %v", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warnf("Slack webhook returned %s", resp.Status)
		return
	}
	logger.Infof("Slack alert sent: %s (%s)", det.MissionName, det.Severity)
}

func formatAlert(det models.Detection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*SENTINEL ALERT: %s*\n\n", det.MissionName)
	fmt.Fprintf(&b, "*Severity:* %s  |  *Risk Score:* %d/100  |  *Domain:* %s  |  *Records:* %d",
		det.Severity, det.RiskScore, titleCase(det.Domain), det.DataCount)

	if det.Insight != "" {
		fmt.Fprintf(&b, "\n\n*Insight:*\n%s", truncate(det.Insight, 400))
	}
	if det.Recommendation != "" {
		fmt.Fprintf(&b, "\n\n*Recommended Action:*\n%s", truncate(det.Recommendation, 250))
	}
	if det.SQL != "" {
		fmt.Fprintf(&b, "\n\n*SQL:*\n```%s```", det.SQL)
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
