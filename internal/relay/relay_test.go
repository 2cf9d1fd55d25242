package relay_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/protocol"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/relay"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	mu     sync.Mutex
	closed bool
	sent   [][]byte
}

func (f *fakeConn) Send(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
}

func (f *fakeConn) Close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) Ping(ctx context.Context) error { return nil }

func (f *fakeConn) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func newTestRelay() (*relay.Relay, *registry.Registry) {
	reg := registry.New(newTestLogger())
	return relay.New(reg, newTestLogger()), reg
}

func TestForwardStampsSenderAndKeepsPayloadVerbatim(t *testing.T) {
	req := require.New(t)
	r, reg := newTestRelay()

	sender := &fakeConn{}
	recipient := &fakeConn{}
	reg.Register("1", sender)
	reg.Register("2", recipient)

	raw := []byte(`{"kind":"offer","recipientId":"2","payload":{"sdp":"v=0 o=caller","type":"offer"}}`)
	r.Forward("1", sender, raw)

	req.Empty(sender.frames(), "sender must not receive anything on success")
	frames := recipient.frames()
	req.Len(frames, 1)

	var env protocol.Envelope
	req.NoError(json.Unmarshal(frames[0], &env))
	req.Equal("offer", env.Kind)
	req.Equal("1", env.SenderID)
	req.Equal("2", env.RecipientID)
	req.JSONEq(`{"sdp":"v=0 o=caller","type":"offer"}`, string(env.Payload))
}

func TestForwardToUnregisteredRecipient(t *testing.T) {
	req := require.New(t)
	r, reg := newTestRelay()

	sender := &fakeConn{}
	reg.Register("1", sender)

	r.Forward("1", sender, []byte(`{"kind":"candidate","recipientId":"99","payload":{}}`))

	frames := sender.frames()
	req.Len(frames, 1, "exactly one failure notice")
	var errFrame protocol.ErrorFrame
	req.NoError(json.Unmarshal(frames[0], &errFrame))
	req.Equal(protocol.KindError, errFrame.Kind)
	req.Equal(protocol.CodeRecipientUnreachable, errFrame.Code)
}

func TestForwardToClosedRecipient(t *testing.T) {
	req := require.New(t)
	r, reg := newTestRelay()

	sender := &fakeConn{}
	recipient := &fakeConn{}
	reg.Register("1", sender)
	reg.Register("2", recipient)
	recipient.Close(nil)

	r.Forward("1", sender, []byte(`{"kind":"answer","recipientId":"2","payload":{}}`))

	req.Empty(recipient.frames())
	frames := sender.frames()
	req.Len(frames, 1)
	var errFrame protocol.ErrorFrame
	req.NoError(json.Unmarshal(frames[0], &errFrame))
	req.Equal(protocol.CodeRecipientUnreachable, errFrame.Code)
}

func TestForwardMalformedFrames(t *testing.T) {
	req := require.New(t)
	r, reg := newTestRelay()

	sender := &fakeConn{}
	recipient := &fakeConn{}
	reg.Register("1", sender)
	reg.Register("2", recipient)

	for _, raw := range []string{
		`not json at all`,
		`{"recipientId":"2"}`,
		`{"kind":"offer"}`,
	} {
		sender.sent = nil
		r.Forward("1", sender, []byte(raw))

		frames := sender.frames()
		req.Len(frames, 1, "input %q", raw)
		var errFrame protocol.ErrorFrame
		req.NoError(json.Unmarshal(frames[0], &errFrame))
		req.Equal(protocol.CodeMalformedMessage, errFrame.Code, "input %q", raw)
		req.Empty(recipient.frames(), "malformed input must never be forwarded")
	}
}
