// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package tcp implements the producer-side client shipping log frames to the
// intake over a long-lived connection.
package tcp

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/DataDog/logpipe/pkg/util/log"
)

const (
	connectTimeout  = 5 * time.Second
	initialBackoff  = 100 * time.Millisecond
	maxBackoff      = 30 * time.Second
	backoffGrowth   = 2
)

// ConnectionManager hands out connections to the intake, reconnecting with
// exponential backoff and jitter for as long as the context lives.
type ConnectionManager struct {
	address string
	mu      sync.Mutex
}

// NewConnectionManager returns a manager for the given intake address.
func NewConnectionManager(address string) *ConnectionManager {
	return &ConnectionManager{address: address}
}

// Address returns the intake address.
func (cm *ConnectionManager) Address() string {
	return cm.address
}

// NewConnection blocks until a connection is established or ctx is done.
func (cm *ConnectionManager) NewConnection(ctx context.Context) (net.Conn, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dialer := net.Dialer{Timeout: connectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", cm.address)
		if err == nil {
			log.Debugf("Connected to %s", cm.address)
			return conn, nil
		}
		log.Warnf("Unable to connect to %s, retrying in %s: %v", cm.address, backoff, err)

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2)) //nolint:gosec
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if backoff < maxBackoff {
			backoff *= backoffGrowth
		}
	}
}

// CloseConnection closes a connection returned by NewConnection.
func (cm *ConnectionManager) CloseConnection(conn net.Conn) {
	if conn != nil {
		conn.Close()
	}
}
