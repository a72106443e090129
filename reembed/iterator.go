// Copyright 2025 Poiesic Systems
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


package reembed

import (
	"context"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

const (
	// DefaultBatchSize is the default number of rows read and embedded together
	DefaultBatchSize = 100
)

// RowIterator pages through every row of a chunk store.
type RowIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewRowIterator creates a row iterator.
// batchSize: number of rows per page; values <= 0 use DefaultBatchSize
func NewRowIterator(repo storage.ChunkRepository, batchSize int) *RowIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RowIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each page of rows in primary key order.
// Iteration stops on the first error from fn or the store.
// Rows may be rewritten by fn; the cursor only moves forward.
func (it *RowIterator) ForEach(ctx context.Context, fn func([]*core.ChunkRecord) error) error {
	var cursor string
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, next, err := it.repo.Scan(ctx, cursor, it.batchSize)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := fn(rows); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}
