package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// WatchOptions filters and formats the change feed.
type WatchOptions struct {
	ExecutionID string
	Kinds       []domain.ChangeKind
	JSON        bool
}

func (o WatchOptions) keep(ev domain.ChangeEvent) bool {
	if o.ExecutionID != "" && ev.ExecutionID != o.ExecutionID {
		return false
	}
	if len(o.Kinds) == 0 {
		return true
	}
	for _, k := range o.Kinds {
		if ev.Kind == k {
			return true
		}
	}
	return false
}

// Watch streams change events from sub to w until ctx is done or the feed closes.
// Each event is one line: JSON when opts.JSON is set, a summary otherwise.
func Watch(ctx context.Context, sub ports.Subscriber, w io.Writer, opts WatchOptions) error {
	events, err := sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !opts.keep(ev) {
				continue
			}
			if opts.JSON {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("encode event: %w", err)
				}
				continue
			}
			if _, err := fmt.Fprintln(w, FormatEvent(ev)); err != nil {
				return err
			}
		}
	}
}

// FormatEvent renders a one-line summary of a change event.
func FormatEvent(ev domain.ChangeEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-7s %s", ev.Timestamp.UTC().Format(time.TimeOnly), ev.Kind, ev.ExecutionID)

	if e := ev.Execution; e != nil {
		if e.LiveAction.Action != "" {
			sb.WriteString(" " + e.LiveAction.Action)
		}
		if e.Status != "" {
			sb.WriteString(" " + string(e.Status))
		}
		if e.Parent != "" && ev.Kind == domain.ChangeCreated {
			sb.WriteString(" parent=" + e.Parent)
		}
	}
	if d := ev.Diff; d != nil && ev.Kind == domain.ChangeUpdated {
		if d.Status != nil {
			sb.WriteString(" status->" + string(*d.Status))
		}
		if len(d.ChildrenAppended) > 0 {
			sb.WriteString(" +children=" + strings.Join(d.ChildrenAppended, ","))
		}
	}
	return sb.String()
}

// ParseKinds splits a comma separated list of change kinds.
func ParseKinds(raw string) ([]domain.ChangeKind, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var kinds []domain.ChangeKind
	for _, k := range strings.Split(raw, ",") {
		kind := domain.ChangeKind(strings.TrimSpace(k))
		switch kind {
		case domain.ChangeCreated, domain.ChangeUpdated:
			kinds = append(kinds, kind)
		default:
			return nil, fmt.Errorf("unknown change kind %q", k)
		}
	}
	return kinds, nil
}
