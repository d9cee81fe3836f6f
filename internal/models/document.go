// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Metadata describes where a piece of text came from.
type Metadata struct {
	// Source is the path of the file the text was read from.
	Source string `json:"source" db:"source"`
	// Page is the zero-based page number within the source file.
	Page int `json:"page" db:"page"`
	// Position is the chunk ordinal within its document. Zero for whole documents.
	Position int `json:"position" db:"position"`
}

// Document is the text of one page of a source file.
type Document struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded-length slice of a Document with the document's metadata.
type Chunk struct {
	ID       string   `json:"id" db:"id"`
	Text     string   `json:"text" db:"text"`
	Metadata Metadata `json:"metadata"`
}

// SourceFile describes a file in the data directory.
type SourceFile struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}
