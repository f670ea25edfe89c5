// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/openpoll/openpoll/internal/observability/logger"
)

// Dispatcher polls the outbox and pushes undelivered events through the
// notifier. Delivery is at-least-once: a record is only marked dispatched
// after the notifier returns, so a failure leaves it queued for the next
// poll.
type Dispatcher struct {
	repo     Repository
	notifier Notifier
	interval time.Duration
	batch    int
}

// NewDispatcher creates a dispatcher polling at the given interval.
func NewDispatcher(repo Repository, notifier Notifier, interval time.Duration, batch int) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		interval: interval,
		batch:    batch,
	}
}

// Run polls until the context is cancelled. Call in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	records, err := d.repo.FetchUndispatched(ctx, d.batch)
	if err != nil {
		slog.ErrorContext(ctx, "outbox fetch failed", logger.Error(err))
		return
	}

	for _, rec := range records {
		if err := d.notifier.Notify(ctx, rec); err != nil {
			slog.WarnContext(ctx, "outbox delivery failed",
				logger.Error(err),
				logger.TenantID(rec.TenantID),
				logger.String("event_type", rec.Type),
			)
			if err := d.repo.RecordFailure(ctx, rec.ID); err != nil {
				slog.ErrorContext(ctx, "outbox failure bookkeeping failed", logger.Error(err))
			}
			continue
		}

		if err := d.repo.MarkDispatched(ctx, rec.ID); err != nil {
			// The notification went out but the mark didn't stick; the
			// record will be re-delivered. Acceptable under at-least-once.
			slog.ErrorContext(ctx, "outbox mark failed", logger.Error(err))
		}
	}
}

// SlogNotifier logs each event instead of delivering it anywhere. Stands
// in for a queue or mail client in deployments without one.
type SlogNotifier struct{}

// Notify implements Notifier.
func (SlogNotifier) Notify(ctx context.Context, rec *Record) error {
	slog.InfoContext(ctx, "NOTIFY",
		logger.TenantID(rec.TenantID),
		logger.String("event_type", rec.Type),
		logger.String("payload", string(rec.Payload)),
	)
	return nil
}
