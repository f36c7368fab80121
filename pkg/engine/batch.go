/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
)

// Batch reconciles many records in parallel. Records naming the same
// volume group and volume are serialized.
type Batch struct {
	Reconciler *Reconciler

	// Concurrency bounds the number of records in flight. Zero or less
	// means no bound.
	Concurrency int

	locks keyedMutex
}

// Run reconciles every record and returns the results in the same order.
func (b *Batch) Run(ctx context.Context, records []lvspec.Record) []Result {
	results := make([]Result, len(records))

	g := errgroup.Group{}
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}

	for i := range records {
		i := i
		g.Go(func() error {
			unlock := b.locks.lock(records[i].VolumeGroup + "/" + records[i].Name)
			defer unlock()

			results[i] = b.Reconciler.Reconcile(ctx, records[i])
			return nil
		})
	}

	// Failures are values in the results; the group never returns one.
	_ = g.Wait()

	return results
}

// keyedMutex hands out one mutex per key, released when its last holder
// unlocks.
type keyedMutex struct {
	mutex sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mutex.Lock()
	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}
	m, found := k.locks[key]
	if !found {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mutex.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mutex.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mutex.Unlock()
	}
}
