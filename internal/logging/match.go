package logging

import (
	"context"
	"log/slog"
)

// MatchState is the live match summary stamped on every record.
type MatchState struct {
	InProgress bool
	TimePassed int64 // milliseconds since kickoff
}

// MatchSource reads the current match state. It is called once per
// record, so it must not take locks held by code that logs.
type MatchSource func() MatchState

// attr renders the state as a "match" group. TimePassed is left out
// between matches.
func (s MatchState) attr() slog.Attr {
	if !s.InProgress {
		return slog.Group("match", slog.Bool("inProgress", false))
	}
	return slog.Group("match",
		slog.Bool("inProgress", true),
		slog.Int64("timePassed", s.TimePassed))
}

// matchHandler stamps the match group onto records before passing them on.
type matchHandler struct {
	next   slog.Handler
	source MatchSource
}

func (h matchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h matchHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.source().attr())
	return h.next.Handle(ctx, r)
}

func (h matchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.next = h.next.WithAttrs(attrs)
	return h
}

func (h matchHandler) WithGroup(name string) slog.Handler {
	h.next = h.next.WithGroup(name)
	return h
}
