package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
)

// Client calls the timetable classifier service: it takes the URL of an
// uploaded timetable image and returns the schedule entries it recognised.
type Client struct {
	baseURL string
	client  *http.Client
}

// New constructs a classifier client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	ImageURL string `json:"image_url"`
}

type extractedEntry struct {
	Name      string  `json:"name"`
	DayOfWeek int     `json:"day_of_week"`
	StartTime string  `json:"start_time"`
	Duration  float64 `json:"duration_hours"`
}

type extractResponse struct {
	Entries []extractedEntry `json:"entries"`
	Error   string           `json:"error"`
}

// Extract runs the classifier on one image and maps its output to drafts.
// Entries the classifier could not fully read are dropped rather than
// guessed at; validation happens again before anything is saved.
func (c *Client) Extract(ctx context.Context, mediaURL string) ([]models.SubjectDraft, error) {
	body, err := json.Marshal(extractRequest{ImageURL: mediaURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier extract: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("classifier extract: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier extract: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed extractResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("classifier extract: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("classifier extract: %s", parsed.Error)
	}

	drafts := make([]models.SubjectDraft, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		if entry.Name == "" || entry.StartTime == "" {
			continue
		}
		drafts = append(drafts, models.SubjectDraft{
			Name:          entry.Name,
			DayOfWeek:     entry.DayOfWeek,
			StartTime:     entry.StartTime,
			DurationHours: entry.Duration,
		})
	}
	return drafts, nil
}
