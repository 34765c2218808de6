package mqtt

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ilievs/pinhub/hardware"
	"github.com/ilievs/pinhub/protocol"
)

var ErrIdle = errors.New("device link idle")

// Stopper ends the MQTT connection behind a link. *mochi.Client
// satisfies it.
type Stopper interface {
	Stop(err error)
}

// LinkConfig sizes the queues and limits of every device link.
type LinkConfig struct {
	QueueSize     int
	IdleTimeout   time.Duration
	MsgRate       float64
	MsgBurst      int
	CheckInterval time.Duration
}

// DeviceLink is one connected device. Outbound frames are queued and
// published by a writer goroutine; inbound frames are queued and
// dispatched in arrival order by a reader goroutine.
type DeviceLink struct {
	id     string
	token  string
	client Stopper
	pub    Publisher
	log    *slog.Logger

	out       chan protocol.Frame
	in        chan protocol.Frame
	highWater int
	limiter   *rate.Limiter
	idle      *IdleTimer

	done      chan struct{}
	closeOnce sync.Once
}

func newDeviceLink(id, token string, client Stopper, pub Publisher, cfg LinkConfig, log *slog.Logger) *DeviceLink {
	size := max(cfg.QueueSize, 1)
	l := &DeviceLink{
		id:        id,
		token:     token,
		client:    client,
		pub:       pub,
		log:       log,
		out:       make(chan protocol.Frame, size),
		in:        make(chan protocol.Frame, size),
		highWater: max(size*3/4, 1),
		idle:      NewIdleTimer(cfg.IdleTimeout, time.Now),
		done:      make(chan struct{}),
	}
	if cfg.MsgRate > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.MsgRate), max(cfg.MsgBurst, 1))
	}
	return l
}

// ID is the MQTT client id.
func (l *DeviceLink) ID() string {
	return l.id
}

// Send queues f for the device. It never blocks.
func (l *DeviceLink) Send(f protocol.Frame) bool {
	select {
	case <-l.done:
		metricFramesOut.WithLabelValues("closed").Inc()
		return false
	default:
	}
	select {
	case l.out <- f:
		return true
	default:
		metricFramesOut.WithLabelValues("dropped").Inc()
		l.log.Warn("device outbound queue full, dropping frame", "link", l.id, "command", f.Command)
		return false
	}
}

// Writable is false once the outbound queue passes its high-water mark.
func (l *DeviceLink) Writable() bool {
	select {
	case <-l.done:
		return false
	default:
	}
	return len(l.out) < l.highWater
}

func (l *DeviceLink) SetIdleTimeout(d time.Duration) {
	l.idle.SetTimeout(d)
}

// deliver hands an inbound frame to the reader. Frames above the rate
// limit or beyond the queue are dropped.
func (l *DeviceLink) deliver(f protocol.Frame) bool {
	l.idle.Mark()
	if l.limiter != nil && !l.limiter.Allow() {
		metricFramesIn.WithLabelValues("rate_limited").Inc()
		return false
	}
	select {
	case <-l.done:
		return false
	case l.in <- f:
		metricFramesIn.WithLabelValues("accepted").Inc()
		return true
	default:
		metricFramesIn.WithLabelValues("queue_full").Inc()
		l.log.Warn("device inbound queue full, dropping frame", "link", l.id, "command", f.Command)
		return false
	}
}

// run starts the reader, writer and idle watcher. They stop when the
// link is closed.
func (l *DeviceLink) run(wg *sync.WaitGroup, state *hardware.State, dispatch func(*hardware.State, protocol.Frame), checkInterval time.Duration) {
	wg.Add(3)
	go func() {
		defer wg.Done()
		l.readLoop(state, dispatch)
	}()
	go func() {
		defer wg.Done()
		l.writeLoop()
	}()
	go func() {
		defer wg.Done()
		l.watchIdle(checkInterval)
	}()
}

func (l *DeviceLink) readLoop(state *hardware.State, dispatch func(*hardware.State, protocol.Frame)) {
	for {
		select {
		case <-l.done:
			return
		case f := <-l.in:
			dispatch(state, f)
		}
	}
}

func (l *DeviceLink) writeLoop() {
	topic := OutTopic(l.token)
	for {
		select {
		case <-l.done:
			return
		case f := <-l.out:
			payload, err := protocol.Encode(f)
			if err != nil {
				metricFramesOut.WithLabelValues("error").Inc()
				l.log.Error("failed to encode frame", "link", l.id, "error", err)
				continue
			}
			if err := l.pub.Publish(topic, payload); err != nil {
				metricFramesOut.WithLabelValues("error").Inc()
				l.log.Warn("failed to publish frame", "link", l.id, "error", err)
				continue
			}
			metricFramesOut.WithLabelValues("sent").Inc()
		}
	}
}

func (l *DeviceLink) watchIdle(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if l.idle.Expired() {
				metricIdleDisconnects.Inc()
				l.log.Info("closing idle device link", "link", l.id, "timeout", l.idle.Timeout())
				l.client.Stop(ErrIdle)
				l.close()
				return
			}
		}
	}
}

func (l *DeviceLink) close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
