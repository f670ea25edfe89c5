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

// Package idempotency is the ledger that makes response submission safe
// under retries. Each logical submission is keyed by (tenant, caller key);
// the storage layer enforces uniqueness on that pair, and conflict on
// insert is the coordination primitive: the loser re-reads and adopts the
// winner's result instead of erroring. No application-level locking.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// MaxKeyLength caps the caller-supplied key.
const MaxKeyLength = 128

var (
	ErrKeyTooLong = errors.New("idempotency key exceeds 128 characters")
)

// Record is one ledger row. A row with an empty ResponseID is PENDING: an
// attempt claimed the key but has not completed. PENDING is a
// crash-recovery marker, not a terminal state; a retry with the same key
// completes the operation and backfills ResponseID.
type Record struct {
	TenantID   string
	Key        string
	ResponseID string
	CreatedAt  time.Time
}

// Completed reports whether the record carries a result.
func (r *Record) Completed() bool {
	return r.ResponseID != ""
}

// Ledger defines the interface for idempotency storage. All operations are
// scoped to the tenant bound to the context.
type Ledger interface {
	// Get returns the record for the key, or nil if no attempt is known.
	Get(ctx context.Context, key string) (*Record, error)

	// Begin claims the key by inserting a pending row. It returns false
	// without error when a row for (tenant, key) already exists - the
	// caller lost the race (or is retrying a crashed attempt) and should
	// re-read by Get.
	Begin(ctx context.Context, key string) (bool, error)

	// Complete backfills the result onto a pending row. It returns false
	// when the row was already completed by a concurrent winner, in which
	// case the caller must discard its own work and adopt the stored
	// result.
	Complete(ctx context.Context, key, responseID string) (bool, error)
}
