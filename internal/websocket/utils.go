package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}

// ReadLoop reads inbound messages on a dedicated goroutine and delivers them
// over a channel until the connection errors or done is closed. The message
// channel is closed when the loop exits; the error channel is buffered so
// the final read error never blocks the loop. Closing the connection alone
// cannot unblock a pending channel send, so a consumer that stops receiving
// must close done to release the goroutine.
func ReadLoop(conn *websocket.Conn, done <-chan struct{}) (<-chan RequestPayload, <-chan error) {
	msgs := make(chan RequestPayload)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		for {
			select {
			case <-done:
				return
			default:
			}

			var msg RequestPayload
			if err := ReadJSON(conn, &msg); err != nil {
				errs <- err
				return
			}

			select {
			case msgs <- msg:
			case <-done:
				return
			}
		}
	}()

	return msgs, errs
}
