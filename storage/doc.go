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


// Package storage provides the storage abstraction layer for ragline.
//
// Every pipeline stage receives the stores it needs as interfaces, so each
// stage can be exercised against in-memory stores in tests.
//
//   - ObjectStore: pipeline artifacts (raw documents, extraction output, pages, chunks)
//   - DocumentRepository: one DocumentRecord per (group, filename)
//   - ChunkRepository: one per granularity, with a group index ordered by filename
//   - ConversationRepository: chat turns with a time-to-live
//   - ExecutionRepository, JobRepository: workflow and extraction job state
//   - DedupRepository: tokens of notifications already handled
//   - PromptRepository: editable prompt templates
//
// Rows are JSON. Chunk rows keep the vector as a JSON array string
// ({id, filename, group, vector, text}) so existing data stays readable.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/var/lib/ragline", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	docs := badger.NewDocumentRepository(backend, "documents")
//	small := badger.NewChunkRepository(backend, "textract")
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Readers never block writers.
package storage
