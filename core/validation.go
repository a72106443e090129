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


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Keys are composed with this separator in storage, so names may not contain it.
const reservedSeparator = "\x00"

var (
	errEmptyGroup    = errors.New("group cannot be empty")
	errEmptyFilename = errors.New("filename cannot be empty")
	errReserved      = errors.New("name contains a reserved character")
)

// ValidateName checks a group or filename component.
func ValidateName(field, value string) error {
	if value == "" {
		if field == "group" {
			return errEmptyGroup
		}
		return errEmptyFilename
	}
	if strings.Contains(value, reservedSeparator) {
		return fmt.Errorf("%s: %w", field, errReserved)
	}
	return nil
}

// ValidateDocument validates a DocumentRecord according to domain rules.
//
// Validation rules:
//   - Group and Filename must be non-empty and free of reserved characters
//   - ProcessingID must be set
//   - SizeKB must not be negative
func ValidateDocument(doc *DocumentRecord) error {
	if doc == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidDocument)
	}
	if err := ValidateName("group", doc.Group); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := ValidateName("filename", doc.Filename); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.ProcessingID == "" {
		return fmt.Errorf("%w: processing id is empty", ErrInvalidDocument)
	}
	if doc.SizeKB < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidDocument)
	}
	return nil
}

// ValidateChunk validates a ChunkRecord before it is written.
func ValidateChunk(chunk *ChunkRecord) error {
	if chunk == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunk)
	}
	if chunk.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidChunk)
	}
	if err := ValidateName("group", chunk.Group); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if err := ValidateName("filename", chunk.Filename); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidChunk)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidChunk)
	}
	return nil
}

// ValidateTurn validates a ConversationTurn before it is appended.
func ValidateTurn(turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}
	if turn.SessionID == "" || strings.Contains(turn.SessionID, reservedSeparator) {
		return fmt.Errorf("%w: bad session id", ErrInvalidTurn)
	}
	if turn.Timestamp == "" {
		return fmt.Errorf("%w: timestamp is empty", ErrInvalidTurn)
	}
	if !turn.Sender.Valid() {
		return fmt.Errorf("%w: sender %q", ErrInvalidTurn, turn.Sender)
	}
	return nil
}
