// Package services implements the driving ports: the sync engine that keeps
// reports, chunks, tables and vectors in step with the corpus, the hybrid
// retriever, and the query and ingest services built on them.
//
// Services depend only on domain types and driven ports.
package services
