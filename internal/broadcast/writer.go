package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

var (
	ErrSlowSubscriber = errors.New("subscriber send buffer full")
	ErrWriterClosed   = errors.New("writer closed")
)

// Writer owns the write side of one websocket connection. Broadcasts and
// command replies share its queue, so a client sees them in enqueue order.
type Writer struct {
	connection *websocket.Conn
	clock      clockwork.Clock
	queue      chan []byte
	done       chan struct{}
	exited     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewWriter(connection *websocket.Conn, clock clockwork.Clock) *Writer {
	w := &Writer{
		connection: connection,
		clock:      clock,
		queue:      make(chan []byte, messageBufferSize),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
	w.configurePongHandler()
	w.wg.Add(1)
	go w.run()
	return w
}

// Send enqueues data without blocking. A full queue disconnects the client.
func (w *Writer) Send(data []byte) error {
	select {
	case <-w.exited:
		return ErrWriterClosed
	default:
	}

	select {
	case w.queue <- data:
		return nil
	default:
		w.Close()
		return ErrSlowSubscriber
	}
}

// Reply enqueues data, waiting for room. Used for answers to the client's own
// commands, which must not be dropped.
func (w *Writer) Reply(data []byte) error {
	select {
	case <-w.exited:
		return ErrWriterClosed
	default:
	}

	select {
	case w.queue <- data:
		return nil
	case <-w.exited:
		return ErrWriterClosed
	}
}

// Done is closed once the write loop has exited.
func (w *Writer) Done() <-chan struct{} {
	return w.exited
}

func (w *Writer) run() {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()
	defer close(w.exited)

	for {
		select {
		case msg := <-w.queue:
			start := w.clock.Now()
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = w.connection.Close()
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(w.clock.Since(start).Seconds())
		case <-ticker.Chan():
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				_ = w.connection.Close()
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close closes the connection without waiting for the write loop. The reader
// side notices and cleans up.
func (w *Writer) Close() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.connection.Close()
	})
}

// Stop closes the connection and waits for the write loop to exit.
func (w *Writer) Stop() {
	w.Close()
	w.wg.Wait()
}

// StopGraceful sends a close frame with reason before closing.
func (w *Writer) StopGraceful(reason string) {
	w.stopOnce.Do(func() {
		close(w.done)

		// The write loop must be gone before we write the close frame.
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		w.updateWriteDeadline()
		_ = w.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

func (w *Writer) configurePongHandler() {
	w.updateReadDeadline()
	w.connection.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		return nil
	})
}

func (w *Writer) updateWriteDeadline() {
	_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *Writer) updateReadDeadline() {
	_ = w.connection.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
