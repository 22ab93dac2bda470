// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package channels provides the notification channel implementations used by
// the alert manager.
package channels

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/logpipe/pkg/alert"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts the canonical alert JSON to an HTTP endpoint.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook returns a webhook channel. Extra headers are added to every
// request; Content-Type is always application/json.
func NewWebhook(name, url string, headers map[string]string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		name:    name,
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements alert.Channel.
func (w *Webhook) Name() string { return w.name }

// Type implements alert.Channel.
func (w *Webhook) Type() string { return "webhook" }

// Send implements alert.Channel.
func (w *Webhook) Send(a *alert.Alert) error {
	payload, err := a.JSON()
	if err != nil {
		return fmt.Errorf("unable to encode alert %s: %w", a.ID, err)
	}
	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", w.name, resp.StatusCode)
	}
	return nil
}
