package audit

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"teamreg/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher enriches events with request metadata and hands them to a sink.
// With an inbox it enqueues instead and a Worker drains to the sink.
type Publisher struct {
	sink  Sink
	inbox chan<- Event
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

// NewAsyncPublisher returns a publisher that never blocks the request path.
// Events are dropped when the buffer is full; ErrBufferFull is returned.
func NewAsyncPublisher(sink Sink, buffer int) (*Publisher, *Worker) {
	ch := make(chan Event, buffer)
	return &Publisher{sink: sink, inbox: ch}, NewWorker(sink, ch)
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.ClientIP == "" {
		base.ClientIP = requestcontext.ClientIP(ctx)
	}
	if base.Browser == "" && base.OS == "" {
		base.Browser, base.OS = describeAgent(requestcontext.UserAgent(ctx))
	}

	if p.inbox == nil {
		return p.sink.Append(ctx, base)
	}
	select {
	case p.inbox <- base:
		return nil
	default:
		return ErrBufferFull
	}
}

// describeAgent reduces a User-Agent header to "Browser Version" and OS.
func describeAgent(header string) (string, string) {
	if strings.TrimSpace(header) == "" {
		return "", ""
	}
	ua := useragent.New(header)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot:" + name, ua.OS()
	}
	name, version := ua.Browser()
	browser := strings.TrimSpace(name + " " + version)
	return browser, ua.OS()
}
