package report

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// maxChunkBytes is the per-message size limit before word-boundary
// splitting kicks in.
const maxChunkBytes = 400

// throttle is the minimum spacing between outgoing sends, keeping the
// transport friendly to the chat backend's own rate limits.
const throttle = 500 * time.Millisecond

// chatState is the transport's connection state: Disconnected →
// Connecting → Ready → Sending*, collapsed onto what Slack's RTM client
// actually exposes. *slack.InvalidAuthEvent* stands in for "identity
// rejected" and drives the same reconnect-with-backoff path as any other
// disconnect.
type chatState int

const (
	stateDisconnected chatState = iota
	stateConnecting
	stateReady
)

func (s chatState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

type sendRequest struct {
	channel string
	text    string
}

// ChatTransport dispatches notifications to Slack channels over the RTM
// API, tracking connection state across RTM's connection-event stream.
type ChatTransport struct {
	rtm *slack.RTM
	log *logging.Logger

	mu    sync.Mutex
	state chatState

	send chan sendRequest
}

// NewChatTransport constructs a transport bound to a bot token. Run must be
// called to actually connect.
func NewChatTransport(token string, log *logging.Logger) *ChatTransport {
	client := slack.New(token)
	return &ChatTransport{
		rtm:  client.NewRTM(),
		log:  log,
		send: make(chan sendRequest, 64),
	}
}

// Run drives the RTM connection and the outgoing send queue until ctx is
// cancelled. It blocks.
func (t *ChatTransport) Run(ctx context.Context) error {
	go t.rtm.ManageConnection()
	defer t.rtm.Disconnect()

	t.setState(stateConnecting)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-t.send:
			t.deliver(req)

		case msg, ok := <-t.rtm.IncomingEvents:
			if !ok {
				return nil
			}
			t.handleEvent(msg)
		}
	}
}

func (t *ChatTransport) handleEvent(msg slack.RTMEvent) {
	switch ev := msg.Data.(type) {
	case *slack.ConnectedEvent:
		t.setState(stateReady)
		t.log.Info("chat: connected", "user", ev.Info.User.Name)

	case *slack.InvalidAuthEvent:
		// Nearest analogue to "nick taken" on IRC: the RTM client retries
		// its own reconnect loop, but the transport is no longer Ready
		// for sends until a fresh ConnectedEvent arrives.
		t.setState(stateDisconnected)
		t.log.Error("chat: invalid auth, awaiting reconnect")

	case *slack.DisconnectedEvent:
		t.setState(stateConnecting)
		t.log.Warn("chat: disconnected, reconnecting")

	case *slack.RTMError:
		t.log.Warn("chat: rtm error", "error", ev.Error())
	}
}

func (t *ChatTransport) setState(s chatState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *ChatTransport) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateReady
}

// Send enqueues a message for channel. Delivery happens asynchronously
// from Run's loop; messages sent while not Ready are dropped with a log
// line rather than blocking the caller, so Reporter dispatch never
// stalls on chat transport hiccups.
func (t *ChatTransport) Send(channel, text string) {
	select {
	case t.send <- sendRequest{channel: channel, text: text}:
	default:
		t.log.Warn("chat: send queue full, dropping message", "channel", channel)
	}
}

func (t *ChatTransport) deliver(req sendRequest) {
	if !t.ready() {
		t.log.Warn("chat: not ready, dropping message", "channel", req.channel)
		return
	}
	for i, chunk := range splitMessage(req.text, maxChunkBytes) {
		if i > 0 {
			time.Sleep(throttle)
		}
		t.rtm.SendMessage(t.rtm.NewOutgoingMessage(chunk, req.channel))
	}
	time.Sleep(throttle)
}

// splitMessage breaks text into chunks no longer than maxBytes, breaking
// only at word boundaries. A single word longer than maxBytes is not cut:
// it becomes one chunk of its own, longer than maxBytes.
func splitMessage(text string, maxBytes int) []string {
	if len(text) <= maxBytes {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)
	var cur strings.Builder

	for _, w := range words {
		candidateLen := cur.Len() + len(w)
		if cur.Len() > 0 {
			candidateLen++ // separating space
		}
		if candidateLen > maxBytes && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
