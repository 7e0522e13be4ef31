// Package loader reads document sources into id/text records ready for
// embedding.
//
// Two source formats are supported: tab-separated text files and XLSX
// workbooks. In both the first row is a header, the first column holds the
// numeric document id and the remaining columns are joined with a TAB into
// the document text. Long texts are split into overlapping rune windows by
// Chunk, so one document may yield several records with the same id.
package loader
