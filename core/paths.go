package core

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Object store prefixes for each pipeline stage.
const (
	PrefixRawDocs        = "raw_docs"
	PrefixRawJSON        = "raw_json"
	PrefixRawText        = "raw_text"
	PrefixPages          = "pages"
	PrefixPagesProcessed = "pages_processed"
	PrefixChunks         = "rag"
)

const (
	suffixTextract  = "_textract.json"
	suffixRaw       = "_raw.txt"
	suffixRawLLM    = "_raw_llm.txt"
	pageMarker      = "_page_"
	pageNumberWidth = 4
)

// ParseDocumentKey splits an uploaded object key of the form
// <prefix>/<group>/<filename> into its group and filename.
func ParseDocumentKey(key string) (group, filename string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := ValidateName("group", parts[1]); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if err := ValidateName("filename", parts[2]); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return parts[1], parts[2], nil
}

// ArtifactRef identifies the artifacts derived from one intake.
// Every derived object name embeds the processing id and the original filename.
type ArtifactRef struct {
	Group        string
	ProcessingID string
	Filename     string
}

// RefFor returns the artifact reference of a document record.
func RefFor(doc *DocumentRecord) ArtifactRef {
	return ArtifactRef{Group: doc.Group, ProcessingID: doc.ProcessingID, Filename: doc.Filename}
}

func (r ArtifactRef) stem() string {
	return r.ProcessingID + "_" + r.Filename
}

// RawDocKey is where the uploaded document lives.
func (r ArtifactRef) RawDocKey() string {
	return RawDocKey(r.Group, r.Filename)
}

// RawDocKey is where an uploaded document lives.
func RawDocKey(group, filename string) string {
	return PrefixRawDocs + "/" + group + "/" + filename
}

// TextractJSONKey is the consolidated extraction-job result.
func (r ArtifactRef) TextractJSONKey() string {
	return PrefixRawJSON + "/" + r.Group + "/" + r.stem() + suffixTextract
}

// RawTextKey is the normalized text for the given extraction source.
func (r ArtifactRef) RawTextKey(source ExtractionSource) string {
	suffix := suffixRaw
	if source == SourceGenerative {
		suffix = suffixRawLLM
	}
	return PrefixRawText + "/" + r.Group + "/" + r.stem() + suffix
}

// PagePrefix bounds every split page of the document. It ends in "_" so
// that one document's prefix never matches another with a longer name.
func (r ArtifactRef) PagePrefix() string {
	return PrefixPages + "/" + r.Group + "/" + r.stem() + "_"
}

// ProcessedPagePrefix bounds every extracted page of the document.
func (r ArtifactRef) ProcessedPagePrefix() string {
	return PrefixPagesProcessed + "/" + r.Group + "/" + r.stem() + "_"
}

// PageKey names split page n (1-indexed).
func (r ArtifactRef) PageKey(n int) string {
	return r.PagePrefix() + PageFileName(n)
}

// PageFileName is the zero padded per-page file name, so lexicographic
// order equals page order.
func PageFileName(n int) string {
	return fmt.Sprintf("page_%0*d.pdf", pageNumberWidth, n)
}

// ChunkPrefix bounds every chunk object of the document.
func (r ArtifactRef) ChunkPrefix() string {
	return ChunkPrefix(r.Group, r.Filename)
}

// ChunkPrefix bounds every chunk object of a document.
func ChunkPrefix(group, filename string) string {
	return PrefixChunks + "/" + group + "/" + filename + "/"
}

// ChunkKey names chunk i (1-indexed) of the given size.
func (r ArtifactRef) ChunkKey(source ExtractionSource, size, i int) string {
	return r.ChunkPrefix() + ChunkRelPath(source, size, i)
}

// ChunkRelPath is the chunk's path relative to the document's chunk prefix.
func ChunkRelPath(source ExtractionSource, size, i int) string {
	return fmt.Sprintf("%s/chunks%d/chunk%d", source, size, i)
}

// ChunkRowFilename is the filename stored on a ChunkRecord: the original
// filename followed by the chunk's relative path.
func ChunkRowFilename(filename string, source ExtractionSource, size, i int) string {
	return filename + "/" + ChunkRelPath(source, size, i)
}

// ChunkRowPrefix matches every ChunkRecord filename of a document.
func ChunkRowPrefix(filename string) string {
	return filename + "/"
}

// ChunkLocation is a parsed chunk object key.
type ChunkLocation struct {
	Group    string
	Filename string
	Source   ExtractionSource
	Size     int
	Index    int
}

// RowFilename is the filename stored on the ChunkRecord for this chunk.
func (c ChunkLocation) RowFilename() string {
	return ChunkRowFilename(c.Filename, c.Source, c.Size, c.Index)
}

// ParseChunkKey parses rag/<group>/<filename>/<source>/chunks<size>/chunk<i>.
func ParseChunkKey(key string) (ChunkLocation, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 6 || parts[0] != PrefixChunks {
		return ChunkLocation{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	size, err := strconv.Atoi(strings.TrimPrefix(parts[4], "chunks"))
	if err != nil || !strings.HasPrefix(parts[4], "chunks") {
		return ChunkLocation{}, fmt.Errorf("%w: bad chunk size in %q", ErrInvalidKey, key)
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(parts[5], "chunk"))
	if err != nil || !strings.HasPrefix(parts[5], "chunk") || idx < 1 {
		return ChunkLocation{}, fmt.Errorf("%w: bad chunk index in %q", ErrInvalidKey, key)
	}
	src := ExtractionSource(parts[3])
	if !src.Valid() {
		return ChunkLocation{}, fmt.Errorf("%w: bad source in %q", ErrInvalidKey, key)
	}
	return ChunkLocation{Group: parts[1], Filename: parts[2], Source: src, Size: size, Index: idx}, nil
}

// ParseArtifactKey recovers the artifact reference from any derived
// artifact key or page prefix, e.g. raw_text/<group>/<pid>_<filename>_raw.txt.
func ParseArtifactKey(key string) (ArtifactRef, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return ArtifactRef{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	stage, group, name := parts[0], parts[1], parts[2]

	switch stage {
	case PrefixRawJSON:
		name = strings.TrimSuffix(name, suffixTextract)
	case PrefixRawText:
		if strings.HasSuffix(name, suffixRawLLM) {
			name = strings.TrimSuffix(name, suffixRawLLM)
		} else {
			name = strings.TrimSuffix(name, suffixRaw)
		}
	case PrefixPages, PrefixPagesProcessed:
		if strings.HasSuffix(name, "_") {
			name = strings.TrimSuffix(name, "_")
		} else if i := strings.LastIndex(name, pageMarker); i >= 0 {
			name = name[:i]
		}
	default:
		return ArtifactRef{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidKey, stage)
	}

	pid, filename, ok := strings.Cut(name, "_")
	if !ok || pid == "" || filename == "" || group == "" {
		return ArtifactRef{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return ArtifactRef{Group: group, ProcessingID: pid, Filename: filename}, nil
}

// ProcessedPageKey mirrors a split page key under pages_processed/ with a .txt extension.
func ProcessedPageKey(pageKey string) (string, error) {
	rest, ok := strings.CutPrefix(pageKey, PrefixPages+"/")
	if !ok {
		return "", fmt.Errorf("%w: not a page key %q", ErrInvalidKey, pageKey)
	}
	rest = strings.TrimSuffix(rest, path.Ext(rest)) + ".txt"
	return PrefixPagesProcessed + "/" + rest, nil
}

// IsTextFile reports whether filename is already plain text.
func IsTextFile(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt", ".text", ".md":
		return true
	}
	return false
}

// IsPageable reports whether filename can be split into pages for generative extraction.
func IsPageable(filename string) bool {
	return strings.ToLower(path.Ext(filename)) == ".pdf"
}

// IsExtractable reports whether the extraction job accepts filename.
func IsExtractable(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	}
	return false
}
