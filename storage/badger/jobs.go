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


package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{
		backend: backend,
	}
}

// SaveJob persists a job and its correlation token index.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.ExtractionJob) error {
	value, err := storage.MarshalJob(job)
	if err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(job.JobID), value); err != nil {
			return err
		}
		if job.Token == "" {
			return nil
		}
		return tx.Set(makeJobTokenKey(job.Token), []byte(job.JobID))
	})
}

// GetJob retrieves a job by id.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*core.ExtractionJob, error) {
	var job *core.ExtractionJob
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		val, err := readValue(tx, makeJobKey(jobID))
		if err != nil {
			return err
		}
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}

// GetJobByToken retrieves the job submitted with a correlation token.
func (r *JobRepository) GetJobByToken(ctx context.Context, token string) (*core.ExtractionJob, error) {
	var job *core.ExtractionJob
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		id, err := readValue(tx, makeJobTokenKey(token))
		if err != nil {
			return err
		}
		val, err := readValue(tx, makeJobKey(string(id)))
		if err != nil {
			return err
		}
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
