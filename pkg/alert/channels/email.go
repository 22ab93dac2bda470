// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package channels

import (
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/DataDog/logpipe/pkg/alert"
)

// sendMailFunc matches smtp.SendMail, swapped out in tests.
type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email delivers alerts as plain-text mail over SMTP.
type Email struct {
	name     string
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	send sendMailFunc
}

// NewEmail returns an email channel. Username may be empty for
// unauthenticated relays.
func NewEmail(name, host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		name:     name,
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

// Name implements alert.Channel.
func (e *Email) Name() string { return e.name }

// Type implements alert.Channel.
func (e *Email) Type() string { return "email" }

// Send implements alert.Channel.
func (e *Email) Send(a *alert.Alert) error {
	if len(e.to) == 0 {
		return fmt.Errorf("email channel %s has no recipients", e.name)
	}
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	return e.send(addr, auth, e.from, e.to, e.compose(a))
}

// compose renders the mail body. Labels and annotations are emitted in key
// order so the output is stable.
func (e *Email) compose(a *alert.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", a.Level, a.Name)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&b, "Alert:       %s\r\n", a.ID)
	fmt.Fprintf(&b, "Status:      %s\r\n", a.Status)
	fmt.Fprintf(&b, "Level:       %s\r\n", a.Level)
	fmt.Fprintf(&b, "Source:      %s\r\n", a.Source)
	fmt.Fprintf(&b, "Triggered:   %s\r\n", a.Timestamp)
	fmt.Fprintf(&b, "Updated:     %s\r\n", a.UpdateTime)
	fmt.Fprintf(&b, "Occurrences: %d\r\n", a.Count)
	if a.Description != "" {
		fmt.Fprintf(&b, "\r\n%s\r\n", a.Description)
	}
	writeSortedMap(&b, "Labels", a.Labels)
	writeSortedMap(&b, "Annotations", a.Annotations)
	if len(a.RelatedLogIDs) > 0 {
		fmt.Fprintf(&b, "\r\nRelated logs: %s\r\n", strings.Join(a.RelatedLogIDs, ", "))
	}
	return []byte(b.String())
}

func writeSortedMap(b *strings.Builder, title string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "\r\n%s:\r\n", title)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %s\r\n", k, m[k])
	}
}
