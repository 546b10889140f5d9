package uds_test

import (
	"context"
	"errors"
	"time"
)

// fakeTransport replays a scripted sequence of reads and records every
// frame sent, letting tests exercise Engine's reassembly logic without a
// real socket.
type fakeTransport struct {
	reads      [][]byte
	readErr    error // returned after reads is exhausted, if set
	readIdx    int
	sent       [][]byte
	connected  bool
	connectErr error
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Receive() ([]byte, error) {
	if f.readIdx >= len(f.reads) {
		if f.readErr != nil {
			return nil, f.readErr
		}
		return nil, errors.New("fakeTransport: reads exhausted")
	}
	chunk := f.reads[f.readIdx]
	f.readIdx++
	return chunk, nil
}

func (f *fakeTransport) ReceiveExact(n int) ([]byte, error) {
	return f.Receive()
}

func (f *fakeTransport) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	return f.connected
}

func (f *fakeTransport) SetTimeout(timeout time.Duration) {}
