package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wappdesk/backend/internal/config"
)

// Client is a rate-limited HTTP client for the WhatsApp Business Cloud API.
// Each tenant sends through its own registered phone number id.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	mu         sync.Mutex
	lastReq    time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.WhatsAppAPIURL,
		token:   cfg.WhatsAppToken,
		httpClient: &http.Client{
			Timeout: cfg.WhatsAppTimeout,
		},
	}
}

// rateLimit ensures at most 5 requests per second.
func (c *Client) rateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastReq)
	if elapsed < 200*time.Millisecond {
		time.Sleep(200*time.Millisecond - elapsed)
	}
	c.lastReq = time.Now()
}

func (c *Client) post(path string, payload interface{}) ([]byte, error) {
	c.rateLimit()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("whatsapp marshal body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("whatsapp API %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

// --- Cloud API types ---

type textMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text,omitempty"`
}

type textPayload struct {
	Body string `json:"body"`
}

type templateMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a free-form text message and returns the WhatsApp message id.
func (c *Client) SendText(phoneNumberID, to, body string) (string, error) {
	payload := textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textPayload{Body: body},
	}

	resp, err := c.post("/"+phoneNumberID+"/messages", payload)
	if err != nil {
		return "", err
	}
	return parseMessageID(resp)
}

// SendTemplate sends a pre-approved template message with body parameters.
func (c *Client) SendTemplate(phoneNumberID, to, templateName, languageCode string, params []string) (string, error) {
	msg := templateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templatePayload{
			Name:     templateName,
			Language: templateLanguage{Code: languageCode},
		},
	}

	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParameter{Type: "text", Text: p})
		}
		msg.Template.Components = []templateComponent{component}
	}

	resp, err := c.post("/"+phoneNumberID+"/messages", msg)
	if err != nil {
		return "", err
	}
	return parseMessageID(resp)
}

func parseMessageID(body []byte) (string, error) {
	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("whatsapp parse response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("whatsapp response contained no message id")
	}
	return resp.Messages[0].ID, nil
}
