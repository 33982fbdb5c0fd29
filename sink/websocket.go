// Package sink provides nfcb.NfcFrame sinks for downstream consumers —
// currently a broadcasting websocket feed.
package sink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n3fcb/nfcbdecode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 5 * time.Second

// wireFrame is the JSON shape pushed to clients; NfcFrame's own fields are
// unexported-adjacent enums, so this gives them stable string names on the
// wire instead of leaking the internal int constants.
type wireFrame struct {
	Type        string `json:"type"`
	Phase       string `json:"phase"`
	SampleStart int64  `json:"sampleStart"`
	SampleEnd   int64  `json:"sampleEnd"`
	TimeStart   float64 `json:"timeStart"`
	TimeEnd     float64 `json:"timeEnd"`
	PayloadHex  string `json:"payloadHex"`
	Flags       uint16 `json:"flags"`
}

// WebSocketSink upgrades incoming HTTP connections to websockets and
// broadcasts every NfcFrame pushed via Publish to all connected clients.
type WebSocketSink struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocketSink constructs an empty sink ready to accept connections.
func NewWebSocketSink(logger *log.Logger) *WebSocketSink {
	return &WebSocketSink{logger: logger, clients: make(map[*websocket.Conn]struct{})}
}

// HandleUpgrade is an http.HandlerFunc that accepts a new client
// connection and keeps it registered until it disconnects.
func (s *WebSocketSink) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("sink: upgrade failed: %v", err)
		}
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client messages; this feed is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts frame to every connected client as JSON. Slow or dead
// clients are dropped rather than blocking the decode loop.
func (s *WebSocketSink) Publish(frame nfcb.NfcFrame) {
	wf := wireFrame{
		Type:        frameTypeName(frame.Type),
		Phase:       framePhaseName(frame.Phase),
		SampleStart: frame.SampleStart,
		SampleEnd:   frame.SampleEnd,
		TimeStart:   frame.TimeStart,
		TimeEnd:     frame.TimeEnd,
		PayloadHex:  hexEncode(frame.Payload),
		Flags:       uint16(frame.Flags),
	}

	payload, err := json.Marshal(wf)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func frameTypeName(t nfcb.FrameType) string {
	switch t {
	case nfcb.PollFrame:
		return "poll"
	case nfcb.ListenFrame:
		return "listen"
	default:
		return "none"
	}
}

func framePhaseName(p nfcb.FramePhase) string {
	switch p {
	case nfcb.SelectionFrame:
		return "selection"
	case nfcb.ApplicationFrame:
		return "application"
	default:
		return "carrier"
	}
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0F]
	}
	return string(out)
}
