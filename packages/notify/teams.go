package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsHTTPClient overrides the HTTP client, mainly for tests
func WithTeamsHTTPClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage is a MessageCard payload
type teamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Facts         []teamsFact `json:"facts"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Notify sends a notification to Teams
func (t *TeamsNotifier) Notify(summary *CycleSummary) error {
	theme := "2EB886" // green
	title := "🟢 YAY! All tests passed"
	if !summary.Resolved {
		theme = "A30200" // red
		title = fmt.Sprintf("🔴 NAY! %s", summary.Reason)
	}

	msg := teamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: theme,
		Summary:    title,
		Sections: []teamsSection{{
			ActivityTitle: title,
			Facts: []teamsFact{
				{Name: "Passed", Value: fmt.Sprintf("%d", summary.Pass)},
				{Name: "Failed", Value: fmt.Sprintf("%d", summary.Fail)},
				{Name: "Errored", Value: fmt.Sprintf("%d", summary.Error)},
				{Name: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
				{Name: "Run", Value: summary.RunID},
			},
		}},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling teams message: %w", err)
	}

	resp, err := t.client.Post(t.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("teams webhook returned %d: %s", resp.StatusCode, body)
	}

	return nil
}
