package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/layout"
	"github.com/p-n-ai/pai-course/internal/session"
)

// handleGraph streams layout frames of the session's knowledge graph. Each
// connection runs its own simulation; drag events from the client pin and
// release nodes. When the session's graph changes the layout starts over
// from the new graph, and an empty frame is sent while there is none.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	state := snap.State
	if state.Graph.Empty() {
		conn.Close(websocket.StatusNormalClosure, "no graph")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan layout.DragEvent)
	go func() {
		defer close(events)
		for {
			var ev layout.DragEvent
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				// The client went away; stop the stream.
				cancel()
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	emit := func(f layout.Frame) error {
		return wsjson.Write(ctx, conn, f)
	}

	for {
		runCtx, stop := context.WithCancel(ctx)
		changed := make(chan session.State, 1)
		go s.watchGraph(runCtx, state.GraphVersion(), changed, stop)

		err = s.streamGraph(runCtx, state.Graph, events, emit)
		stop()

		select {
		case next := <-changed:
			slog.Debug("graph changed, restarting layout", "nodes", len(next.Graph.Nodes))
			state = next
			continue
		default:
		}
		break
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		slog.Warn("graph stream ended", "error", err)
		conn.Close(websocket.StatusInternalError, "stream failed")
	}
}

// streamGraph lays out graph until ctx ends. An empty graph yields one empty
// frame and then waits.
func (s *Server) streamGraph(ctx context.Context, graph curriculum.KnowledgeGraph, events <-chan layout.DragEvent, emit func(layout.Frame) error) error {
	if graph.Empty() {
		if err := emit(layout.Frame{Nodes: []layout.FrameNode{}, Links: []curriculum.Edge{}}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}

	sim := layout.New(graph, layout.DefaultParams(s.cfg.GraphWidth, s.cfg.GraphHeight))
	if n := sim.Dropped(); n > 0 {
		slog.Debug("dropped dangling graph edges", "count", n)
	}
	return sim.Run(ctx, s.cfg.TickInterval, events, emit)
}

// watchGraph polls the session until its graph version differs from version,
// then sends the new state on changed and calls stop. It also calls stop when
// the session can no longer be read.
func (s *Server) watchGraph(ctx context.Context, version session.Token, changed chan<- session.State, stop context.CancelFunc) {
	ticker := time.NewTicker(s.cfg.GraphPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.session.Snapshot(ctx)
			if err != nil {
				stop()
				return
			}
			if snap.State.GraphVersion() != version {
				changed <- snap.State
				stop()
				return
			}
		}
	}
}
