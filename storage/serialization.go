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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/ragline/core"
)

// ChunkRow is the stored layout of a ChunkRecord. The vector is kept as a
// JSON array inside a string so rows written by other producers stay readable.
type ChunkRow struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Group    string `json:"group"`
	Vector   string `json:"vector"`
	Text     string `json:"text"`
}

// MarshalChunk serializes a ChunkRecord to its row format.
func MarshalChunk(chunk *core.ChunkRecord) ([]byte, error) {
	vector, err := core.EncodeVector(chunk.Vector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return marshal(ChunkRow{
		ID:       chunk.ID,
		Filename: chunk.Filename,
		Group:    chunk.Group,
		Vector:   vector,
		Text:     chunk.Text,
	})
}

// UnmarshalChunk deserializes a row into a ChunkRecord.
func UnmarshalChunk(data []byte) (*core.ChunkRecord, error) {
	var row ChunkRow
	if err := unmarshal(data, &row); err != nil {
		return nil, err
	}
	vector, err := core.DecodeVector(row.Vector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.ChunkRecord{
		ID:       row.ID,
		Filename: row.Filename,
		Group:    row.Group,
		Vector:   vector,
		Text:     row.Text,
	}, nil
}

// MarshalDocument serializes a DocumentRecord to bytes.
func MarshalDocument(doc *core.DocumentRecord) ([]byte, error) {
	return marshal(doc)
}

// UnmarshalDocument deserializes a DocumentRecord from bytes.
func UnmarshalDocument(data []byte) (*core.DocumentRecord, error) {
	var doc core.DocumentRecord
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalTurn serializes a ConversationTurn to bytes.
func MarshalTurn(turn *core.ConversationTurn) ([]byte, error) {
	return marshal(turn)
}

// UnmarshalTurn deserializes a ConversationTurn from bytes.
func UnmarshalTurn(data []byte) (*core.ConversationTurn, error) {
	var turn core.ConversationTurn
	if err := unmarshal(data, &turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

// MarshalExecution serializes an Execution to bytes.
func MarshalExecution(exec *core.Execution) ([]byte, error) {
	return marshal(exec)
}

// UnmarshalExecution deserializes an Execution from bytes.
func UnmarshalExecution(data []byte) (*core.Execution, error) {
	var exec core.Execution
	if err := unmarshal(data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// MarshalJob serializes an ExtractionJob to bytes.
func MarshalJob(job *core.ExtractionJob) ([]byte, error) {
	return marshal(job)
}

// UnmarshalJob deserializes an ExtractionJob from bytes.
func UnmarshalJob(data []byte) (*core.ExtractionJob, error) {
	var job core.ExtractionJob
	if err := unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return b, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return nil
}
