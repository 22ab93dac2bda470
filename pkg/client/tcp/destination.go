// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package tcp

import (
	"context"
	"net"

	"github.com/DataDog/logpipe/pkg/util/log"
)

// frameDelimiter terminates every frame on the wire.
var frameDelimiter = []byte("\r\n")

// Destination ships frames to the intake over one long-lived connection,
// transparently reconnecting after write errors.
type Destination struct {
	connManager *ConnectionManager
	conn        net.Conn
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewDestination returns a destination for the given intake address.
func NewDestination(address string) *Destination {
	ctx, cancel := context.WithCancel(context.Background())
	return &Destination{
		connManager: NewConnectionManager(address),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Send delimits content and writes it to the intake. On a write error the
// connection is recycled and the frame is written once more on a fresh one.
func (d *Destination) Send(content []byte) error {
	frame := append(append([]byte{}, content...), frameDelimiter...)
	for attempt := 0; ; attempt++ {
		if d.conn == nil {
			conn, err := d.connManager.NewConnection(d.ctx)
			if err != nil {
				return err
			}
			d.conn = conn
		}
		if _, err := d.conn.Write(frame); err != nil {
			d.connManager.CloseConnection(d.conn)
			d.conn = nil
			if attempt == 0 {
				log.Debugf("Resetting connection following write error: %v", err)
				continue
			}
			return err
		}
		return nil
	}
}

// Close stops any pending reconnection and closes the connection.
func (d *Destination) Close() {
	d.cancel()
	d.connManager.CloseConnection(d.conn)
	d.conn = nil
}
