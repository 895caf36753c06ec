// Package normalisers holds content normalisation shared by extraction and
// indexing. The table subpackage parses, repairs and flattens the cell
// mappings produced by table detection.
package normalisers
