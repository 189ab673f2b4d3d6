// Package evolution is a thin client for the WhatsApp messaging gateway.
// Every call is a single REST round-trip authenticated by an api key header;
// responses are decoded into the narrow shapes the pipeline consumes.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingConfig is returned by NewClient when base URL or api key is empty.
var ErrMissingConfig = errors.New("evolution: base url and api key are required")

// Config configures the gateway client. HTTPClient is optional.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client talks to the messaging gateway.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient validates the config and builds a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, ErrMissingConfig
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   httpc,
	}, nil
}

// Instance is one gateway connection slot.
type Instance struct {
	Name   string `json:"instanceName"`
	Status string `json:"status"`
}

type instanceEnvelope struct {
	Instance Instance `json:"instance"`
}

// Group is one chat group visible to an instance.
type Group struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Size    int    `json:"size"`
}

// SendResult is the gateway's acknowledgement of a send.
type SendResult struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// Media is a downloaded media payload, still base64-encoded.
type Media struct {
	Base64   string
	Mimetype string
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway: %s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway decode: %w", err)
	}
	return nil
}

// FetchInstances lists the gateway's connection slots.
func (c *Client) FetchInstances(ctx context.Context) ([]Instance, error) {
	var envelopes []instanceEnvelope
	if err := c.do(ctx, http.MethodGet, "/instance/fetchInstances", nil, &envelopes); err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(envelopes))
	for _, e := range envelopes {
		out = append(out, e.Instance)
	}
	return out, nil
}

// FetchAllGroups lists every group the instance participates in.
func (c *Client) FetchAllGroups(ctx context.Context, instanceName string) ([]Group, error) {
	if instanceName == "" {
		return nil, errors.New("evolution: instance name is required")
	}
	path := "/group/fetchAllGroups/" + url.PathEscape(instanceName) + "?getParticipants=false"
	var groups []Group
	if err := c.do(ctx, http.MethodGet, path, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SendText delivers a plain text message to remoteJid via instanceName.
func (c *Client) SendText(ctx context.Context, instanceName, remoteJid, text string) (*SendResult, error) {
	if instanceName == "" || remoteJid == "" || text == "" {
		return nil, errors.New("evolution: instance, recipient and text are required")
	}
	payload := map[string]any{
		"number":      remoteJid,
		"textMessage": map[string]string{"text": text},
	}
	var res SendResult
	if err := c.do(ctx, http.MethodPost, "/message/sendText/"+url.PathEscape(instanceName), payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MediaMessage describes one media send.
type MediaMessage struct {
	InstanceName string
	RemoteJid    string
	MediaURL     string
	Mimetype     string
	Caption      string
	FileName     string
}

// SendMedia delivers an image with caption to a group.
func (c *Client) SendMedia(ctx context.Context, msg MediaMessage) (*SendResult, error) {
	if msg.InstanceName == "" || msg.RemoteJid == "" || msg.MediaURL == "" {
		return nil, errors.New("evolution: instance, recipient and media url are required")
	}
	mimetype := msg.Mimetype
	if mimetype == "" {
		mimetype = "image/jpeg"
	}
	fileName := msg.FileName
	if fileName == "" {
		fileName = "media.jpg"
	}
	payload := map[string]any{
		"number": msg.RemoteJid,
		"mediaMessage": map[string]string{
			"mediatype": "image",
			"media":     msg.MediaURL,
			"mimetype":  mimetype,
			"fileName":  fileName,
			"caption":   msg.Caption,
		},
	}
	var res SendResult
	if err := c.do(ctx, http.MethodPost, "/message/sendMedia/"+url.PathEscape(msg.InstanceName), payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type base64Response struct {
	Base64   string `json:"base64"`
	Mimetype string `json:"mimetype"`
	Type     string `json:"type"`
	Data     struct {
		Base64   string `json:"base64"`
		Mimetype string `json:"mimetype"`
	} `json:"data"`
	Message struct {
		Base64 string `json:"base64"`
	} `json:"message"`
	Media struct {
		Base64   string `json:"base64"`
		Mimetype string `json:"mimetype"`
	} `json:"media"`
}

// FetchMediaBase64 downloads the media attached to a stored gateway message.
// Gateway versions disagree on where the payload lives in the response, so
// every known location is probed.
func (c *Client) FetchMediaBase64(ctx context.Context, instanceName, messageID string) (*Media, error) {
	if instanceName == "" || messageID == "" {
		return nil, errors.New("evolution: instance and message id are required")
	}
	payload := map[string]any{
		"message":      map[string]any{"key": map[string]string{"id": messageID}},
		"convertToMp4": false,
	}
	var res base64Response
	path := "/chat/getBase64FromMediaMessage/" + url.PathEscape(instanceName)
	if err := c.do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return nil, err
	}

	b64 := firstNonEmpty(res.Base64, res.Data.Base64, res.Message.Base64, res.Media.Base64)
	if b64 == "" {
		return nil, errors.New("evolution: media response carried no base64 payload")
	}
	return &Media{
		Base64:   b64,
		Mimetype: firstNonEmpty(res.Mimetype, res.Data.Mimetype, res.Media.Mimetype, res.Type),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
