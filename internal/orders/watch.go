package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"storefront/internal/api"
)

type liveSource interface {
	LiveTrackingURL(orderID string) string
	Token() string
}

// Watcher follows an order over the live tracking WebSocket.
type Watcher struct {
	source liveSource
	dialer ws.Dialer
}

func NewWatcher(source liveSource) *Watcher {
	return &Watcher{source: source}
}

// Watch calls fn with every tracking update for orderID. It returns nil once
// the order reaches a final status or the server closes the stream, the
// context's error when ctx ends, and fn's error if fn fails.
func (w *Watcher) Watch(ctx context.Context, orderID string, fn func(api.Tracking) error) error {
	if orderID == "" {
		return ErrMissingOrderID
	}

	dialer := w.dialer
	if token := w.source.Token(); token != "" {
		dialer.Header = ws.HandshakeHeaderHTTP(http.Header{
			"Authorization": []string{"Bearer " + token},
		})
	}

	url := w.source.LiveTrackingURL(orderID)
	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open live tracking for %s: %w", orderID, err)
	}
	defer func() {
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	var rw io.ReadWriter = conn
	if br != nil {
		// frames the server sent along with the handshake response
		rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
		defer ws.PutReader(br)
	}

	slog.DebugContext(ctx, "watching order", "order", orderID, "url", url)
	for {
		payload, err := wsutil.ReadServerText(rw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if closedByServer(err) {
				return nil
			}
			return fmt.Errorf("live tracking for %s: %w", orderID, err)
		}

		var tracking api.Tracking
		if err := json.Unmarshal(payload, &tracking); err != nil {
			slog.WarnContext(ctx, "skipping unreadable tracking update", "order", orderID, "error", err)
			continue
		}
		if tracking.OrderID == "" {
			tracking.OrderID = orderID
		}
		if err := fn(tracking); err != nil {
			return err
		}
		if Final(tracking.Status) {
			return nil
		}
	}
}

func closedByServer(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
