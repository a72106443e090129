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


// Package search retrieves indexed chunks similar to a query.
//
// The Retriever interface hides the retrieval strategy. BruteForce embeds
// the query and compares it against every row of one granularity store:
//   - with a group, only the group's rows are read, page by page, through
//     the store's group index
//   - without a group, the whole store is scanned
//
// Rows whose cosine similarity reaches the tolerance are returned best
// first; equal scores keep the order the store returned them in, so results
// are deterministic for an unchanged store. Retrieval never writes and takes
// no locks; a document being indexed concurrently may show up partially.
package search
