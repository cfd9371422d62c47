// Package ingest turns source files into store-ready text chunks.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Document is a parsed source file.
type Document struct {
	// Name is the originating file name, kept as metadata on every chunk.
	Name string

	// Text is the full extracted text.
	Text string
}

// Parser extracts text from a file on disk.
type Parser interface {
	// Parse reads and extracts the text of the file at path.
	Parse(path string) (*Document, error)

	// Supports reports whether this parser handles the given path.
	Supports(path string) bool
}

// Chunker splits a document into chunks suitable for embedding.
type Chunker interface {
	Chunk(doc *Document) []string
}

// TextParser handles plaintext and markdown files.
type TextParser struct{}

// NewTextParser creates a parser for plaintext and markdown files.
func NewTextParser() *TextParser {
	return &TextParser{}
}

var textExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".rst":      {},
	".text":     {},
}

// Supports reports whether path has a recognized text extension.
// Files without an extension are treated as plaintext.
func (p *TextParser) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return true
	}
	_, ok := textExtensions[ext]
	return ok
}

// Parse reads the file and returns its text.
func (p *TextParser) Parse(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("parsing %s: not valid UTF-8 text", path)
	}

	return &Document{
		Name: filepath.Base(path),
		Text: string(raw),
	}, nil
}

const (
	// DefaultChunkWords is the default chunk size in words.
	DefaultChunkWords = 220

	// DefaultOverlapWords is the default overlap between consecutive
	// chunks in words.
	DefaultOverlapWords = 40
)

// ChunkerConfig holds configuration for the word-window chunker.
type ChunkerConfig struct {
	// ChunkWords is the chunk size in words.
	// Defaults to DefaultChunkWords if zero.
	ChunkWords int

	// OverlapWords is the overlap between consecutive chunks in words.
	// Defaults to DefaultOverlapWords if zero. Must be smaller than
	// ChunkWords.
	OverlapWords int
}

// WordChunker splits text on paragraph boundaries first, then into
// overlapping word windows.
type WordChunker struct {
	chunkWords   int
	overlapWords int
}

// NewWordChunker creates a word-window chunker.
func NewWordChunker(cfg ChunkerConfig) *WordChunker {
	chunkWords := cfg.ChunkWords
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}

	overlapWords := cfg.OverlapWords
	if overlapWords <= 0 {
		overlapWords = DefaultOverlapWords
	}
	if overlapWords >= chunkWords {
		overlapWords = chunkWords / 2
	}

	return &WordChunker{
		chunkWords:   chunkWords,
		overlapWords: overlapWords,
	}
}

// Chunk splits the document into chunks. Paragraphs that fit inside a
// single window are packed together; longer paragraphs are split into
// overlapping word windows. Never returns empty chunks.
func (c *WordChunker) Chunk(doc *Document) []string {
	if doc == nil {
		return nil
	}

	paragraphs := splitParagraphs(doc.Text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var pending []string
	pendingWords := 0

	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, strings.Join(pending, "\n\n"))
			pending = nil
			pendingWords = 0
		}
	}

	for _, para := range paragraphs {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}

		if len(words) > c.chunkWords {
			// Oversized paragraph: flush what we have, then window it.
			flush()
			chunks = append(chunks, c.window(words)...)
			continue
		}

		if pendingWords+len(words) > c.chunkWords {
			flush()
		}
		pending = append(pending, para)
		pendingWords += len(words)
	}
	flush()

	return chunks
}

// window splits words into overlapping chunks of chunkWords each.
func (c *WordChunker) window(words []string) []string {
	step := c.chunkWords - c.overlapWords

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, para := range strings.Split(normalized, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}
