// Package connectors holds the sources documents are read from. The
// filesystem connector serves the local PDF corpus.
package connectors
