package eventloop

import (
	"net"
	"sync"
)

// tcpConn is a loop-owned, non-blocking-from-the-caller's-perspective
// TCP connection. Reads are delivered as a stream of Completions
// (the Callback binding template), not as a single future, so a
// socket behaves like Node's net.Socket 'data' event stream.
type tcpConn struct {
	id     int
	conn   net.Conn
	onData func([]byte)
	onErr  func(error)
	onEOF  func()
	stopCh chan struct{}
}

// tcpReactor owns every live TCP connection the script has open.
// Each dial and each streaming read loop runs on its own goroutine,
// posting completions back to the loop thread rather than blocking it.
type tcpReactor struct {
	mu    sync.Mutex
	conns map[int]*tcpConn
	nextID int
	ready chan<- Completion
}

func newTCPReactor(ready chan<- Completion) *tcpReactor {
	return &tcpReactor{
		conns: make(map[int]*tcpConn),
		ready: ready,
	}
}

func (r *tcpReactor) hasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns) > 0
}

// Connect dials addr on its own goroutine and reports the outcome via
// onDone, run on the loop thread.
func (r *tcpReactor) Connect(addr string, onDone func(id int, err error)) {
	go func() {
		conn, err := net.Dial("tcp", addr)
		r.ready <- Completion{Run: func() {
			if err != nil {
				onDone(0, err)
				return
			}
			r.mu.Lock()
			r.nextID++
			id := r.nextID
			tc := &tcpConn{id: id, conn: conn, stopCh: make(chan struct{})}
			r.conns[id] = tc
			r.mu.Unlock()
			onDone(id, nil)
		}}
	}()
}

// ReadStart begins streaming reads from connection id, delivering
// each chunk via onData, terminal EOF via onEOF, and any other error
// via onErr. Only one read loop may be active per connection.
func (r *tcpReactor) ReadStart(id int, onData func([]byte), onErr func(error), onEOF func()) {
	r.mu.Lock()
	tc, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	tc.onData, tc.onErr, tc.onEOF = onData, onErr, onEOF

	go func() {
		buf := make([]byte, 64*1024)
		for {
			select {
			case <-tc.stopCh:
				return
			default:
			}
			n, err := tc.conn.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				r.ready <- Completion{Run: func() {
					if tc.onData != nil {
						tc.onData(chunk)
					}
				}}
			}
			if err != nil {
				r.ready <- Completion{Run: func() {
					if err.Error() == "EOF" {
						if tc.onEOF != nil {
							tc.onEOF()
						}
					} else if tc.onErr != nil {
						tc.onErr(err)
					}
				}}
				return
			}
		}
	}()
}

// Write submits buf for writing on its own goroutine, reporting the
// outcome via onDone.
func (r *tcpReactor) Write(id int, buf []byte, onDone func(err error)) {
	r.mu.Lock()
	tc, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		onDone(net.ErrClosed)
		return
	}
	go func() {
		_, err := tc.conn.Write(buf)
		r.ready <- Completion{Run: func() { onDone(err) }}
	}()
}

// Close closes connection id and stops its read loop.
func (r *tcpReactor) Close(id int) {
	r.mu.Lock()
	tc, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	close(tc.stopCh)
	tc.conn.Close()
}

func (r *tcpReactor) close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int]*tcpConn)
	r.mu.Unlock()
	for _, tc := range conns {
		close(tc.stopCh)
		tc.conn.Close()
	}
}
