package core

import (
	"errors"
	"sort"
	"testing"
)

func TestParseDocumentKey(t *testing.T) {
	tests := []struct {
		key          string
		wantGroup    string
		wantFilename string
		wantErr      bool
	}{
		{key: "raw_docs/sales/q1.pdf", wantGroup: "sales", wantFilename: "q1.pdf"},
		{key: "raw_docs/sales", wantErr: true},
		{key: "raw_docs//q1.pdf", wantErr: true},
		{key: "raw_docs/sales/sub/q1.pdf", wantErr: true},
		{key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			g, f, err := ParseDocumentKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("error = %v, want ErrInvalidKey", err)
				}
				return
			}
			if err != nil || g != tt.wantGroup || f != tt.wantFilename {
				t.Errorf("ParseDocumentKey(%q) = %q, %q, %v", tt.key, g, f, err)
			}
		})
	}
}

func TestArtifactRef_Keys(t *testing.T) {
	ref := ArtifactRef{Group: "sales", ProcessingID: "41a89fc5-a188-4cdf-95e1-23a635869bc1", Filename: "q1.pdf"}
	pid := ref.ProcessingID

	cases := map[string]string{
		ref.RawDocKey():                        "raw_docs/sales/q1.pdf",
		ref.TextractJSONKey():                  "raw_json/sales/" + pid + "_q1.pdf_textract.json",
		ref.RawTextKey(SourceTextract):         "raw_text/sales/" + pid + "_q1.pdf_raw.txt",
		ref.RawTextKey(SourceGenerative):       "raw_text/sales/" + pid + "_q1.pdf_raw_llm.txt",
		ref.PagePrefix():                       "pages/sales/" + pid + "_q1.pdf_",
		ref.PageKey(3):                         "pages/sales/" + pid + "_q1.pdf_page_0003.pdf",
		ref.ProcessedPagePrefix():              "pages_processed/sales/" + pid + "_q1.pdf_",
		ref.ChunkKey(SourceGenerative, 2000, 1): "rag/sales/q1.pdf/llm/chunks2000/chunk1",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestParseArtifactKey_RoundTrip(t *testing.T) {
	ref := ArtifactRef{Group: "sales", ProcessingID: "41a89fc5-a188-4cdf-95e1-23a635869bc1", Filename: "q1_final.pdf"}
	keys := []string{
		ref.TextractJSONKey(),
		ref.RawTextKey(SourceTextract),
		ref.RawTextKey(SourceGenerative),
		ref.PagePrefix(),
		ref.PageKey(12),
		ref.ProcessedPagePrefix(),
	}
	for _, k := range keys {
		got, err := ParseArtifactKey(k)
		if err != nil {
			t.Fatalf("ParseArtifactKey(%q) error = %v", k, err)
		}
		if got != ref {
			t.Errorf("ParseArtifactKey(%q) = %+v, want %+v", k, got, ref)
		}
	}

	if _, err := ParseArtifactKey("unknown/sales/x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestProcessedPageKey(t *testing.T) {
	got, err := ProcessedPageKey("pages/g/pid_a.pdf_page_0001.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got != "pages_processed/g/pid_a.pdf_page_0001.txt" {
		t.Errorf("ProcessedPageKey() = %q", got)
	}
	if _, err := ProcessedPageKey("raw_docs/g/a.pdf"); err == nil {
		t.Error("expected error for non page key")
	}
}

func TestPageFileName_SortsNumerically(t *testing.T) {
	names := []string{PageFileName(10), PageFileName(2), PageFileName(1), PageFileName(100)}
	sort.Strings(names)
	want := []string{PageFileName(1), PageFileName(2), PageFileName(10), PageFileName(100)}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", names, want)
		}
	}
}

func TestParseChunkKey(t *testing.T) {
	loc, err := ParseChunkKey("rag/sales/q1.pdf/textract/chunks1000/chunk7")
	if err != nil {
		t.Fatal(err)
	}
	want := ChunkLocation{Group: "sales", Filename: "q1.pdf", Source: SourceTextract, Size: 1000, Index: 7}
	if loc != want {
		t.Errorf("ParseChunkKey() = %+v, want %+v", loc, want)
	}
	if loc.RowFilename() != "q1.pdf/textract/chunks1000/chunk7" {
		t.Errorf("RowFilename() = %q", loc.RowFilename())
	}

	bad := []string{
		"rag/sales/q1.pdf/chunks1000/chunk7",
		"rag/sales/q1.pdf/textract/chunksX/chunk7",
		"rag/sales/q1.pdf/textract/chunks1000/chunk0",
		"rag/sales/q1.pdf/other/chunks1000/chunk1",
	}
	for _, k := range bad {
		if _, err := ParseChunkKey(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseChunkKey(%q) error = %v, want ErrInvalidKey", k, err)
		}
	}
}

func TestFileTypes(t *testing.T) {
	if !IsTextFile("notes.TXT") || IsTextFile("a.pdf") {
		t.Error("IsTextFile misclassified")
	}
	if !IsPageable("a.pdf") || IsPageable("a.png") {
		t.Error("IsPageable misclassified")
	}
	if !IsExtractable("scan.png") || IsExtractable("a.docx") {
		t.Error("IsExtractable misclassified")
	}
}
