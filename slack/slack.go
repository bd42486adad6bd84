// Package slack delivers generated menus to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"chefbot"
)

const (
	Username  = "ChefBot"
	IconEmoji = ":cook:"

	// maxSectionText is Slack's limit for the text of one section block.
	maxSectionText = 3000
)

type Client struct {
	webhookURL string
	httpClient chefbot.HTTPClient
}

func NewClient(webhookURL string, httpClient chefbot.HTTPClient) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type string `json:"type"`
	Text *text  `json:"text,omitempty"`
}

type message struct {
	Channel   string  `json:"channel,omitempty"`
	Username  string  `json:"username"`
	IconEmoji string  `json:"icon_emoji"`
	Text      string  `json:"text"`
	Blocks    []block `json:"blocks,omitempty"`
}

// PostMessage sends plain text to channel.
func (c *Client) PostMessage(ctx context.Context, channel string, msg string) error {
	return c.post(ctx, message{Channel: channel, Username: Username, IconEmoji: IconEmoji, Text: msg})
}

// PostMenu sends a menu with a header naming the constraints it answers. Long
// menus are split across several section blocks.
func (c *Client) PostMenu(ctx context.Context, channel, constraints, menu string) error {
	header := "Menu pour : " + constraints
	m := message{
		Channel:   channel,
		Username:  Username,
		IconEmoji: IconEmoji,
		Text:      header,
		Blocks:    []block{{Type: "header", Text: &text{Type: "plain_text", Text: truncate(header, 150)}}},
	}
	for _, part := range chunk(menu, maxSectionText) {
		m.Blocks = append(m.Blocks, block{Type: "section", Text: &text{Type: "mrkdwn", Text: part}})
	}
	return c.post(ctx, m)
}

func (c *Client) post(ctx context.Context, m message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(body) > 0 {
			return fmt.Errorf("failed to post message: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// chunk splits s into pieces of at most n runes, preferring line breaks.
func chunk(s string, n int) []string {
	var out []string
	for utf8.RuneCountInString(s) > n {
		cut := byteOffset(s, n)
		if i := strings.LastIndexByte(s[:cut], '\n'); i > 0 {
			cut = i + 1
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return s[:byteOffset(s, n-1)] + "…"
}

func byteOffset(s string, runes int) int {
	i := 0
	for off := range s {
		if i == runes {
			return off
		}
		i++
	}
	return len(s)
}

var _ chefbot.SlackClient = (*Client)(nil)
