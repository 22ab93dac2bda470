// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package tcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationSendsDelimitedFrames(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan string, 2)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			received <- line
		}
	}()

	dest := NewDestination(listener.Addr().String())
	defer dest.Close()

	require.NoError(t, dest.Send([]byte("hello intake")))
	select {
	case line := <-received:
		assert.Equal(t, "hello intake\r\n", line)
	case <-time.After(time.Second):
		t.Fatal("frame was never received")
	}
}

func TestDestinationReconnectsAfterServerRestart(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	accept := func(l net.Listener) chan net.Conn {
		conns := make(chan net.Conn, 1)
		go func() {
			conn, err := l.Accept()
			if err == nil {
				conns <- conn
			}
		}()
		return conns
	}

	conns := accept(listener)
	dest := NewDestination(addr)
	defer dest.Close()

	require.NoError(t, dest.Send([]byte("one")))
	serverConn := <-conns

	// kill the server side; the destination only notices on write
	serverConn.Close()
	listener.Close()

	listener, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	defer listener.Close()
	conns = accept(listener)

	// one of the next sends lands on a fresh connection
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := dest.Send([]byte("two")); err == nil {
			break
		}
	}
	select {
	case <-conns:
	case <-time.After(5 * time.Second):
		t.Fatal("destination never reconnected")
	}
}

func TestConnectionManagerHonorsContext(t *testing.T) {
	cm := NewConnectionManager("127.0.0.1:1") // nothing listens here
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := cm.NewConnection(ctx)
	assert.Error(t, err)
}
