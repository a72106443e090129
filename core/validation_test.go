package core

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *DocumentRecord
		wantErr error
	}{
		{
			name:    "valid record",
			doc:     &DocumentRecord{Group: "sales", Filename: "q1.pdf", ProcessingID: "abc", SizeKB: 1.5},
			wantErr: nil,
		},
		{name: "nil record", doc: nil, wantErr: ErrInvalidDocument},
		{
			name:    "empty group",
			doc:     &DocumentRecord{Filename: "q1.pdf", ProcessingID: "abc"},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty filename",
			doc:     &DocumentRecord{Group: "sales", ProcessingID: "abc"},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "reserved character",
			doc:     &DocumentRecord{Group: "sa\x00les", Filename: "q1.pdf", ProcessingID: "abc"},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "missing processing id",
			doc:     &DocumentRecord{Group: "sales", Filename: "q1.pdf"},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "negative size",
			doc:     &DocumentRecord{Group: "sales", Filename: "q1.pdf", ProcessingID: "abc", SizeKB: -1},
			wantErr: ErrInvalidDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	valid := ChunkRecord{ID: "g-1", Filename: "a.pdf/llm/chunks2000/chunk1", Group: "g", Vector: []float32{1}, Text: "x"}
	if err := ValidateChunk(&valid); err != nil {
		t.Fatalf("ValidateChunk() unexpected error = %v", err)
	}

	mutations := map[string]func(c *ChunkRecord){
		"no id":     func(c *ChunkRecord) { c.ID = "" },
		"no group":  func(c *ChunkRecord) { c.Group = "" },
		"no text":   func(c *ChunkRecord) { c.Text = "" },
		"no vector": func(c *ChunkRecord) { c.Vector = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := ValidateChunk(&c); !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("ValidateChunk() error = %v, want ErrInvalidChunk", err)
			}
		})
	}
}

func TestValidateTurn(t *testing.T) {
	turn := &ConversationTurn{SessionID: "s1", Timestamp: "1.000001", Sender: SenderUser, Message: "hi"}
	if err := ValidateTurn(turn); err != nil {
		t.Fatalf("ValidateTurn() unexpected error = %v", err)
	}

	bad := *turn
	bad.Sender = "robot"
	if err := ValidateTurn(&bad); !errors.Is(err, ErrInvalidTurn) {
		t.Errorf("ValidateTurn() error = %v, want ErrInvalidTurn", err)
	}

	bad = *turn
	bad.SessionID = ""
	if err := ValidateTurn(&bad); !errors.Is(err, ErrInvalidTurn) {
		t.Errorf("ValidateTurn() error = %v, want ErrInvalidTurn", err)
	}
}
