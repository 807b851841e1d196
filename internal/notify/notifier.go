package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/inspectyard/internal/watchdog"
)

// Notifier fans watchdog alerts out to every configured adapter.
type Notifier struct {
	adapters map[string]Adapter
}

// New returns a Notifier. Nil adapters are skipped.
func New(adapters map[string]Adapter) *Notifier {
	n := &Notifier{adapters: make(map[string]Adapter)}
	for name, a := range adapters {
		if a != nil {
			n.adapters[name] = a
		}
	}
	return n
}

// Len returns the number of adapters.
func (n *Notifier) Len() int { return len(n.adapters) }

// Alert sends a message when the report has something worth reporting. A
// failing adapter does not prevent delivery to the others.
func (n *Notifier) Alert(ctx context.Context, report *watchdog.Report) error {
	events := FormatReport(report)
	if len(events) == 0 || len(n.adapters) == 0 {
		return nil
	}
	msg := OutboundMessage{Text: FormatSummary(report), Events: events}

	var errs []error
	for name, a := range n.adapters {
		if err := a.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notify: %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

var _ watchdog.Alerter = (*Notifier)(nil)
