package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures latency simulation on a Pipe.
type NetworkCondition struct {
	// DelayMin is the minimum delay to add to each write.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each write.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides a bidirectional in-memory connection between an EVCC
// endpoint (0) and an SECC endpoint (1). It wraps pion's test.Bridge.
//
// By default, Pipe delivers writes in a background goroutine.
// Use SetAutoProcess(false) or NewPipeWithConfig for manual control.
type Pipe struct {
	bridge *test.Bridge
	conns  [2]*pipeConn

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	p.conns[0] = &pipeConn{Conn: p.bridge.GetConn0(), pipe: p, local: PipeAddr{ID: 0}, remote: PipeAddr{ID: 1}}
	p.conns[1] = &pipeConn{Conn: p.bridge.GetConn1(), pipe: p, local: PipeAddr{ID: 1}, remote: PipeAddr{ID: 0}}

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures latency simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current network condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Conn0 returns the connection for endpoint 0.
func (p *Pipe) Conn0() net.Conn {
	return p.conns[0]
}

// Conn1 returns the connection for endpoint 1.
func (p *Pipe) Conn1() net.Conn {
	return p.conns[1]
}

// Channels returns framed channels for both endpoints.
func (p *Pipe) Channels(config ConnConfig) (*Conn, *Conn) {
	return NewConn(p.conns[0], config), NewConn(p.conns[1], config)
}

// Listener returns a listener that accepts endpoint 1 exactly once.
func (p *Pipe) Listener() net.Listener {
	return &pipeListener{
		conn:    p.conns[1],
		closeCh: make(chan struct{}),
	}
}

// Tick delivers one queued write in each direction.
// Returns the number of writes delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued writes.
// Returns the number of writes delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// delay returns the simulated latency for one write.
func (p *Pipe) delay() time.Duration {
	p.mu.Lock() // rng is not safe for concurrent use
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DelayMax <= 0 {
		return 0
	}
	d := cond.DelayMin
	if cond.DelayMax > cond.DelayMin {
		d += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
	}
	return d
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// pipeConn gives a bridge endpoint addresses and latency simulation.
type pipeConn struct {
	net.Conn
	pipe   *Pipe
	local  PipeAddr
	remote PipeAddr
}

func (c *pipeConn) Write(b []byte) (int, error) {
	if d := c.pipe.delay(); d > 0 {
		time.Sleep(d)
	}
	return c.Conn.Write(b)
}

func (c *pipeConn) LocalAddr() net.Addr  { return c.local }
func (c *pipeConn) RemoteAddr() net.Addr { return c.remote }

// pipeListener accepts one pipe endpoint, then blocks until Close.
type pipeListener struct {
	conn    net.Conn
	closeCh chan struct{}

	mu       sync.Mutex
	accepted bool
	closed   bool
}

func (l *pipeListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	if l.accepted {
		l.mu.Unlock()
		<-l.closeCh
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	l.accepted = true
	l.mu.Unlock()
	return l.conn, nil
}

func (l *pipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.closeCh)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Verify pipe types implement net interfaces.
var (
	_ net.Conn     = (*pipeConn)(nil)
	_ net.Listener = (*pipeListener)(nil)
)
