// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package tcp

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	mu          sync.Mutex
	frames      []string
	connects    int
	disconnects int
}

func (r *frameRecorder) handlers() Handlers {
	return Handlers{
		OnConnect: func(_ uint64, _ string) {
			r.mu.Lock()
			r.connects++
			r.mu.Unlock()
		},
		OnFrame: func(_ uint64, _ string, frame []byte) {
			r.mu.Lock()
			r.frames = append(r.frames, string(frame))
			r.mu.Unlock()
		},
		OnDisconnect: func(_ uint64) {
			r.mu.Lock()
			r.disconnects++
			r.mu.Unlock()
		},
	}
}

func (r *frameRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	copy(out, r.frames)
	return out
}

func TestListenerReadsCRLFFrames(t *testing.T) {
	recorder := &frameRecorder{}
	listener := NewListener(0, recorder.handlers())
	require.NoError(t, listener.Start())
	defer listener.Stop()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("first frame\r\nsecond frame\r\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first frame", "second frame"}, recorder.snapshot())
}

func TestListenerAcceptsBareLF(t *testing.T) {
	recorder := &frameRecorder{}
	listener := NewListener(0, recorder.handlers())
	require.NoError(t, listener.Start())
	defer listener.Stop()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("plain text line\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "plain text line", recorder.snapshot()[0])
}

func TestListenerSkipsEmptyFrames(t *testing.T) {
	recorder := &frameRecorder{}
	listener := NewListener(0, recorder.handlers())
	require.NoError(t, listener.Start())
	defer listener.Stop()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)

	_, err = conn.Write([]byte("\r\n\r\nkept\r\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestListenerTracksConnections(t *testing.T) {
	recorder := &frameRecorder{}
	listener := NewListener(0, recorder.handlers())
	require.NoError(t, listener.Start())
	defer listener.Stop()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		return recorder.connects == 1 && recorder.disconnects == 1
	}, time.Second, 10*time.Millisecond)
}

func TestReadFrameCapsOverlongLines(t *testing.T) {
	long := strings.Repeat("a", maxFrameSize+4096) + "\nnext\n"
	reader := bufio.NewReaderSize(strings.NewReader(long), 4096)

	frame, err := readFrame(reader)
	require.NoError(t, err)
	assert.Len(t, frame, maxFrameSize)

	// the discarded tail does not bleed into the next frame
	frame, err = readFrame(reader)
	require.NoError(t, err)
	assert.Equal(t, "next\n", string(frame))
}

func TestListenerStopClosesConnections(t *testing.T) {
	recorder := &frameRecorder{}
	listener := NewListener(0, recorder.handlers())
	require.NoError(t, listener.Start())

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// make sure the worker is up before stopping
	_, err = conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	listener.Stop()

	// the server side is gone: reads return EOF or reset
	conn.SetReadDeadline(time.Now().Add(time.Second)) //nolint:errcheck
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}
