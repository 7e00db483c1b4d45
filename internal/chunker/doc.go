// Package chunker splits source content into overlapping line windows for
// full-text indexing. The windows are language-agnostic: any text file can
// be chunked, with line numbers preserved so search results cite exact
// locations. Session observations are stored as single chunks.
package chunker
