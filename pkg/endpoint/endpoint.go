package endpoint

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightcall/bridgecore/pkg/classify"
	"github.com/brightcall/bridgecore/pkg/pool"
	"github.com/brightcall/bridgecore/pkg/queue"
)

const (
	// jobQueueCapacity sizes the receive-job queue that serializes every
	// listener-table mutation onto the endpoint's run loop.
	jobQueueCapacity = 512

	// jobPollInterval bounds how long one blocking read waits before the
	// run loop comes back around to drain any jobs posted meanwhile.
	jobPollInterval = 10 * time.Millisecond

	// defaultMTU bounds one read's buffer size.
	defaultMTU = 1500

	// recvPoolCapacity bounds how many datagrams can be in flight through
	// the pool at once before Run backs off rather than allocating around
	// it. Sized generously above one socket's read rate since a held block
	// is freed the moment dispatch returns.
	recvPoolCapacity = 64

	// iceResponsePendingCapacity bounds the number of in-flight outbound
	// STUN requests this endpoint tracks at once, matching the original's
	// fixed-capacity _iceResponseListeners table.
	iceResponsePendingCapacity = 4096
)

// Endpoint owns one UDP socket and everything needed to classify, route,
// and serialize mutation of its three listener tables: iceByUser (ICE
// username to listener), dtlsBySource (source address to listener), and
// iceResponsePending (STUN transaction id to listener, for in-flight
// requests awaiting a response). Reads of these tables happen only from
// the run-loop goroutine during dispatch; writes happen on that same
// goroutine too, inside drained jobs or directly (dispatch erasing a
// matched pending transaction, SendStunTo), so no lock guards them.
type Endpoint struct {
	conn *net.UDPConn
	mtu  int
	log  *logrus.Entry

	recvPool *pool.Pool
	jobs     *queue.Mpmc[func()]

	iceByUser          map[string]Listener
	dtlsBySource       map[netip.AddrPort]Listener
	iceResponsePending map[TransactionID]Listener

	defaultListener atomic.Pointer[listenerBox]

	dropped atomic.Uint64
	rcvBuf  int

	closed chan struct{}
	wg     sync.WaitGroup
}

// listenerBox lets defaultListener be stored in an atomic.Pointer even
// though Listener is an interface (atomic.Pointer needs a concrete pointee
// type).
type listenerBox struct {
	l Listener
}

// New binds a UDP socket on addr and returns an Endpoint ready to Run. log
// may be nil, in which case a standard logrus logger with no fields is
// used.
func New(addr netip.AddrPort, log *logrus.Entry) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Endpoint{
		conn:               conn,
		mtu:                defaultMTU,
		log:                log,
		recvPool:           pool.New("endpoint-recv", recvPoolCapacity, defaultMTU),
		jobs:               queue.NewMpmc[func()](jobQueueCapacity),
		iceByUser:          make(map[string]Listener),
		dtlsBySource:       make(map[netip.AddrPort]Listener),
		iceResponsePending: make(map[TransactionID]Listener),
		rcvBuf:             socketRcvBufBytes(conn),
		closed:             make(chan struct{}),
	}
	return e, nil
}

// SetDefaultListener installs the fallback listener DTLS datagrams are
// routed to when no dtlsBySource entry matches their source address.
func (e *Endpoint) SetDefaultListener(l Listener) {
	e.defaultListener.Store(&listenerBox{l: l})
}

func (e *Endpoint) defaultListenerValue() Listener {
	box := e.defaultListener.Load()
	if box == nil {
		return nil
	}
	return box.l
}

// Stats returns this endpoint's current transport-level counters.
func (e *Endpoint) Stats() TransportStats {
	return TransportStats{Dropped: e.dropped.Load(), RcvBufferBytes: e.rcvBuf}
}

// Run processes datagrams and posted jobs until Close is called. It blocks
// the calling goroutine.
func (e *Endpoint) Run() {
	e.wg.Add(1)
	defer e.wg.Done()

	for {
		select {
		case <-e.closed:
			return
		default:
		}

		e.drainJobs()

		block := e.recvPool.Allocate()
		if block == nil {
			// Pool exhausted: every in-flight packet is still being
			// dispatched by a slow listener. Back off one poll interval
			// rather than allocating around the pool's bound.
			e.dropped.Add(1)
			time.Sleep(jobPollInterval)
			continue
		}

		e.conn.SetReadDeadline(time.Now().Add(jobPollInterval))
		n, srcAddr, err := e.conn.ReadFromUDPAddrPort(block.Data())
		if err != nil {
			block.Free()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-e.closed:
				return
			default:
				continue
			}
		}
		e.dispatch(srcAddr, block.Data()[:n])
		block.Free()
	}
}

// Close shuts down the endpoint's socket and waits for Run to return.
func (e *Endpoint) Close() error {
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
	err := e.conn.Close()
	e.wg.Wait()
	return err
}

// post enqueues job for execution on the run-loop goroutine. Returns false
// if the job queue is full, in which case the caller's mutation is simply
// not applied — callers treat this the same as any other resource
// exhaustion, logging at Debug rather than failing loudly.
func (e *Endpoint) post(job func()) bool {
	if !e.jobs.Push(job) {
		e.log.Debug("endpoint: receive-job queue full, dropping posted job")
		return false
	}
	return true
}

// drainJobs runs every job currently queued, in order. Only ever called
// from the run-loop goroutine.
func (e *Endpoint) drainJobs() {
	for {
		job, ok := e.jobs.Pop()
		if !ok {
			return
		}
		job()
	}
}

// dispatch classifies one received datagram and routes it to a listener,
// in the order spec'd: STUN request, STUN response, DTLS, RTCP, RTP,
// otherwise dropped silently (anti-amplification; no log, to avoid
// facilitating a log-flood DoS from arbitrary inbound traffic).
func (e *Endpoint) dispatch(src netip.AddrPort, data []byte) {
	switch {
	case classify.IsStun(data):
		e.dispatchStun(src, data)
	case classify.IsDtls(data):
		l := e.dtlsBySource[src]
		if l == nil {
			l = e.defaultListenerValue()
		}
		if l != nil {
			l.OnDtlsReceived(e, src, data)
		}
	case classify.IsRtcp(data):
		if l := e.dtlsBySource[src]; l != nil {
			l.OnRtcpReceived(e, src, data)
		}
	case classify.IsRtp(data):
		if l := e.dtlsBySource[src]; l != nil {
			l.OnRtpReceived(e, src, data)
		}
	default:
		e.dropped.Add(1)
	}
}

func (e *Endpoint) dispatchStun(src netip.AddrPort, data []byte) {
	msg, err := decodeStun(data)
	if err != nil {
		e.dropped.Add(1)
		return
	}

	switch {
	case isStunRequest(msg):
		first, _, err := stunUsernameHalves(msg)
		if err != nil {
			return
		}
		if l := e.iceByUser[first]; l != nil {
			l.OnIceReceived(e, src, data)
		}
	case isStunResponse(msg):
		txid := msg.TransactionID
		l, ok := e.iceResponsePending[txid]
		if !ok {
			return
		}
		delete(e.iceResponsePending, txid)
		l.OnIceReceived(e, src, data)
	}
}

// SendStunTo transmits a STUN message to target. If the message is a
// request and its transaction id is not already pending, the local ICE
// user is resolved from the USERNAME attribute's second half and a
// matching iceByUser listener is recorded against the transaction id
// before the datagram is written to the wire, so a response that arrives
// as fast as the write returns still finds its entry in
// iceResponsePending. A full iceResponsePending table logs at Warn but
// never blocks the send, matching the endpoint-wide rule that resource
// exhaustion is non-fatal back-pressure.
//
// Like UdpEndpointImpl::sendStunTo in the original, this touches the
// listener tables directly rather than through a posted job: it must be
// called from the endpoint's own run-loop goroutine (e.g. from within a
// Listener callback invoked during dispatch), never concurrently with
// Run. Callers on another goroutine must hop onto the run loop themselves
// first, the same way every other direct table access in this package
// does.
func (e *Endpoint) SendStunTo(target netip.AddrPort, data []byte) error {
	msg, err := decodeStun(data)
	if err == nil && isStunRequest(msg) {
		txid := msg.TransactionID
		if _, pending := e.iceResponsePending[txid]; !pending {
			if _, second, uerr := stunUsernameHalves(msg); uerr == nil {
				if l := e.iceByUser[second]; l != nil {
					if len(e.iceResponsePending) >= iceResponsePendingCapacity {
						e.log.Warn("endpoint: pending ICE request lookup table is full")
					} else {
						e.iceResponsePending[txid] = l
					}
				}
			}
		}
	}
	_, werr := e.conn.WriteToUDPAddrPort(data, target)
	return werr
}

// CancelStunTransaction posts a job erasing txid from iceResponsePending,
// e.g. when a caller gives up waiting for a response.
func (e *Endpoint) CancelStunTransaction(txid TransactionID) {
	e.post(func() {
		delete(e.iceResponsePending, txid)
	})
}

// RegisterListenerByUser posts an idempotent insert of listener under
// iceUser into iceByUser. OnRegistered fires exactly once, the first time
// this key is populated.
func (e *Endpoint) RegisterListenerByUser(iceUser string, listener Listener) {
	e.post(func() {
		if _, exists := e.iceByUser[iceUser]; exists {
			return
		}
		e.iceByUser[iceUser] = listener
		listener.OnRegistered(e)
	})
}

// RegisterListenerBySource posts an insert of listener under src into
// dtlsBySource. If the key already names a different listener, the old
// one is unregistered and the new one registered in its place (a source
// port reused by a new peer); if it already names the same listener, this
// is a no-op.
func (e *Endpoint) RegisterListenerBySource(src netip.AddrPort, listener Listener) {
	e.post(func() {
		if existing, ok := e.dtlsBySource[src]; ok {
			if existing == listener {
				return
			}
			e.dtlsBySource[src] = listener
			if existing != nil {
				existing.OnUnregistered(e)
			}
			listener.OnRegistered(e)
			return
		}
		e.dtlsBySource[src] = listener
		listener.OnRegistered(e)
	})
}

// UnregisterListener posts a job erasing every table entry whose value is
// listener, firing OnUnregistered exactly once per logical registration:
// the ICE-username entry (if any) and the DTLS-source entry (if any) each
// count once; any iceResponsePending entries piggybacking on the ICE
// registration are erased without an extra callback.
func (e *Endpoint) UnregisterListener(listener Listener) {
	e.post(func() {
		for user, l := range e.iceByUser {
			if l == listener {
				delete(e.iceByUser, user)
				listener.OnUnregistered(e)
			}
		}
		for txid, l := range e.iceResponsePending {
			if l == listener {
				delete(e.iceResponsePending, txid)
			}
		}
		for src, l := range e.dtlsBySource {
			if l == listener {
				delete(e.dtlsBySource, src)
				listener.OnUnregistered(e)
			}
		}
	})
}

// FocusListener posts a job erasing every dtlsBySource entry for listener
// whose key is not remote, firing OnUnregistered for each one erased. Used
// when ICE nomination settles on a single candidate pair and earlier
// speculative registrations should be dropped.
func (e *Endpoint) FocusListener(remote netip.AddrPort, listener Listener) {
	e.post(func() {
		for src, l := range e.dtlsBySource {
			if l == listener && src != remote {
				delete(e.dtlsBySource, src)
				listener.OnUnregistered(e)
			}
		}
	})
}
