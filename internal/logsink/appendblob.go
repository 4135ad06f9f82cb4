// Package logsink ships structured logs as JSON lines to an Azure append
// blob so a fleet of clients can be debugged from one place.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// maxBlock stays well under the 4 MiB append block limit.
const maxBlock = 1 << 20

var errClosed = errors.New("log sink closed")

type Config struct {
	AccountName string
	AccountKey  string
	Container   string
	Prefix      string        // blob name prefix, e.g. "logs"
	FlushEvery  time.Duration // default 2s
}

func (c Config) Enabled() bool {
	return c.Prefix != "" && c.AccountName != "" && c.AccountKey != "" && c.Container != ""
}

type appender interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// Handler is a slog.Handler that batches records and appends them to one blob
// per host and day.
type Handler struct {
	ab    appender
	ch    chan []byte
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	every time.Duration
}

func New(ctx context.Context, cfg Config) (*Handler, error) {
	if !cfg.Enabled() {
		return nil, errors.New("AccountName, AccountKey, Container and Prefix are required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}
	host, _ := os.Hostname()
	blobName := BlobName(cfg.Prefix, host, time.Now())
	// blob names may contain slashes and must not be path-escaped
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" +
		url.PathEscape(cfg.Container) + "/" + blobName

	ab, err := appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create append blob client: %w", err)
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("failed to create log blob %s: %w", blobName, err)
	}
	return newHandler(ab, cfg.FlushEvery), nil
}

func newHandler(ab appender, every time.Duration) *Handler {
	if every <= 0 {
		every = 2 * time.Second
	}
	h := &Handler{
		ab:    ab,
		ch:    make(chan []byte, 1024),
		stop:  make(chan struct{}),
		every: every,
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// Close flushes buffered records. Records handled afterwards are rejected.
func (h *Handler) Close() error {
	h.once.Do(func() {
		close(h.stop)
	})
	h.wg.Wait()
	return nil
}

// Levels are filtered by the caller.
func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ev := make(map[string]any, r.NumAttrs()+3)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev["ts"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	r.Attrs(func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			// one level deep
			m := map[string]any{}
			for _, aa := range a.Value.Group() {
				m[aa.Key] = value(aa.Value.Resolve())
			}
			ev[a.Key] = m
		} else {
			ev[a.Key] = value(a.Value)
		}
		return true
	})

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}

	select {
	case <-h.stop:
		return errClosed
	default:
	}
	select {
	case h.ch <- b.Bytes():
		return nil
	case <-h.stop:
		return errClosed
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: h, attrs: attrs}
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

func (h *Handler) loop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.every)
	defer ticker.Stop()

	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := h.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			// the default logger may be this handler
			fmt.Fprintf(os.Stderr, "log sink: append failed: %v\n", err)
		}
		buf = nil
	}

	for {
		select {
		case line := <-h.ch:
			buf = append(buf, line...)
			if len(buf) >= maxBlock {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-h.stop:
			for {
				select {
				case line := <-h.ch:
					buf = append(buf, line...)
				default:
					flush()
					return
				}
			}
		}
	}
}

// value renders errors as their message.
func value(v slog.Value) any {
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

type withAttrs struct {
	*Handler
	attrs []slog.Attr
}

func (w *withAttrs) Handle(ctx context.Context, r slog.Record) error {
	r2 := r.Clone()
	r2.AddAttrs(w.attrs...)
	return w.Handler.Handle(ctx, r2)
}

func (w *withAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: w.Handler, attrs: append(append([]slog.Attr{}, w.attrs...), attrs...)}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
