// Package node adapts the annotator to the flow runtime's node contract:
// one Input call per inbound message and one Close call at shutdown that
// emits the final annotated frame.
package node

import (
	"FrameAnnotator/annotator"
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"FrameAnnotator/monitor"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type is the node type registered with the flow runtime.
const Type = "object-detector"

const previewQuality = 80

var ErrDisplayDisabled = errors.New("display is disabled for this node")

type Config struct {
	Name    string
	Topic   string
	Display bool
}

type Option func(*Node)

func WithSinks(sinks ...Emitter) Option {
	return func(n *Node) { n.sinks = append(n.sinks, sinks...) }
}

func WithMonitor(m *monitor.Monitor) Option {
	return func(n *Node) { n.mon = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Node) { n.log = l }
}

// Status is a point-in-time view of the node.
type Status struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Display     bool      `json:"display"`
	Busy        bool      `json:"busy"`
	Closed      bool      `json:"closed"`
	Processed   uint64    `json:"processed"`
	Dropped     uint64    `json:"dropped"`
	Failed      uint64    `json:"failed"`
	LastWidth   int       `json:"lastWidth"`
	LastHeight  int       `json:"lastHeight"`
	LastFaces   int       `json:"lastFaces"`
	LastFrameAt time.Time `json:"lastFrameAt"`
}

type Node struct {
	id    string
	cfg   Config
	annot *annotator.Annotator
	sinks []Emitter
	mon   *monitor.Monitor
	log   *zap.Logger

	mu     sync.Mutex
	status Status

	closeOnce sync.Once
	final     iface.Message
	closeErr  error
}

func New(cfg Config, a *annotator.Annotator, opts ...Option) *Node {
	n := &Node{
		id:    uuid.NewString(),
		cfg:   cfg,
		annot: a,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = logger.Log()
	}
	n.log = n.log.With(zap.String("node", n.id), zap.String("type", Type))
	n.status = Status{ID: n.id, Type: Type, Name: cfg.Name, Display: cfg.Display}
	return n
}

func (n *Node) ID() string { return n.id }

func (n *Node) Config() Config { return n.cfg }

// Input handles one inbound message. Dropped frames return a Result with
// Dropped set and no error.
func (n *Node) Input(ctx context.Context, msg iface.Message) (annotator.Result, error) {
	if err := ctx.Err(); err != nil {
		return annotator.Result{}, err
	}
	start := time.Now()
	res, err := n.annot.OnFrame(msg.Payload)
	elapsed := time.Since(start)

	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case err != nil:
		n.status.Failed++
		n.mon.FrameFailed(annotator.Stage(err))
		n.log.Error("Frame processing failed", zap.String("msgid", msg.ID), zap.Error(err))
	case res.Dropped:
		n.status.Dropped++
		n.mon.FrameDropped()
		n.log.Debug("Frame dropped, previous frame still in flight", zap.String("msgid", msg.ID))
	default:
		n.status.Processed++
		n.status.LastWidth, n.status.LastHeight = res.Width, res.Height
		n.status.LastFaces = len(res.Faces)
		n.status.LastFrameAt = time.Now()
		n.mon.FrameProcessed(elapsed, len(res.Faces))
	}
	return res, err
}

// Close encodes the last annotated frame, emits it to every sink and
// returns it. Sink errors are joined; every sink is attempted. Only the
// first call does any work, later calls return the same message and error.
func (n *Node) Close(ctx context.Context) (iface.Message, error) {
	n.closeOnce.Do(func() {
		n.final, n.closeErr = n.close(ctx)
	})
	return n.final, n.closeErr
}

func (n *Node) close(ctx context.Context) (iface.Message, error) {
	data, err := n.annot.OnShutdown()
	n.mu.Lock()
	n.status.Closed = true
	n.mu.Unlock()
	if err != nil {
		return iface.Message{}, fmt.Errorf("shutdown node %s: %w", n.id, err)
	}

	out := iface.Message{ID: uuid.NewString(), Topic: n.cfg.Topic, Payload: data}
	var errs []error
	for _, s := range n.sinks {
		if err := s.Emit(ctx, out); err != nil {
			n.log.Error("Failed to emit final frame", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	n.log.Info("Emitted final frame", zap.String("msgid", out.ID), zap.Int("bytes", len(data)), zap.Int("sinks", len(n.sinks)))
	return out, errors.Join(errs...)
}

// Preview returns the current annotated frame when display is enabled.
func (n *Node) Preview() ([]byte, error) {
	if !n.cfg.Display {
		return nil, ErrDisplayDisabled
	}
	return n.annot.Snapshot(previewQuality)
}

func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := n.status
	st.Busy = n.annot.Busy()
	return st
}
