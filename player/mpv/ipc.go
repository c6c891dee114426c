package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/subplay/subplay/log"
)

// ipcCommand is the JSON structure sent to mpv's IPC socket.
type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is any line received from the socket: either the reply to a
// command, carrying its request_id, or an event.
type ipcMessage struct {
	RequestID *int64 `json:"request_id"`
	Error     string `json:"error"`
	Data      any    `json:"data"`

	Event     string `json:"event"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

const (
	socketWaitRetries = 30
	socketWaitDelay   = 100 * time.Millisecond
	replyTimeout      = time.Second
	maxLineSize       = 1 << 20
)

var (
	ErrClosed       = errors.New("ipc connection closed")
	ErrReplyTimeout = errors.New("no reply from mpv")
	ErrRejected     = errors.New("mpv error")
)

type dialFunc func(socket string) (net.Conn, error)

func dialUnix(socket string) (net.Conn, error) {
	return net.Dial("unix", socket)
}

// client is one persistent connection to the IPC socket.
type client struct {
	log     log.Component
	conn    net.Conn
	onEvent func(ipcMessage)
	timeout time.Duration

	writeM sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage
	closed  bool
	done    chan struct{}
}

// connect polls until the socket accepts connections, giving up early when
// the process exits.
func connect(dial dialFunc, socket string, exited <-chan struct{}, onEvent func(ipcMessage)) (*client, error) {
	var lastErr error

	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-exited:
			return nil, fmt.Errorf("mpv exited before socket was ready")
		default:
		}

		conn, err := dial(socket)
		if err == nil {
			c := &client{
				log:     log.For("mpv"),
				conn:    conn,
				onEvent: onEvent,
				timeout: replyTimeout,
				pending: make(map[int64]chan ipcMessage),
				done:    make(chan struct{}),
			}
			go c.readLoop()
			return c, nil
		}
		lastErr = err

		time.Sleep(socketWaitDelay)
	}

	return nil, fmt.Errorf("socket %s not ready after %d attempts: %w", socket, socketWaitRetries, lastErr)
}

// command sends args and waits for the matching reply. It must not be
// called from onEvent.
func (c *client) command(args ...any) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	reply := make(chan ipcMessage, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(ipcCommand{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	c.log.Tracef("-> %s", payload)

	c.writeM.Lock()
	_, err = c.conn.Write(append(payload, '\n'))
	c.writeM.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case m := <-reply:
		if m.Error != "" && m.Error != "success" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, m.Error)
		}
		return m.Data, nil
	case <-c.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, fmt.Errorf("%v: %w", args[0], ErrReplyTimeout)
	}
}

// readLoop reads newline-delimited JSON until the connection closes.
func (c *client) readLoop() {
	defer c.close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 4096), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var m ipcMessage
		if err := json.Unmarshal(line, &m); err != nil {
			c.log.Debugf("skipping unparseable line: %v", err)
			continue
		}

		if m.RequestID != nil {
			c.mu.Lock()
			reply, ok := c.pending[*m.RequestID]
			c.mu.Unlock()
			if ok {
				reply <- m
			}
			continue
		}

		if m.Event != "" && c.onEvent != nil {
			c.onEvent(m)
		}
	}

	if err := scanner.Err(); err != nil {
		c.log.Debugf("read loop: %v", err)
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	_ = c.conn.Close()
}
