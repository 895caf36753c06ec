package domain

import "time"

// HistoryTurn is one previous question/answer exchange of a conversation.
type HistoryTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QueryRequest is a question asked against the knowledge base.
type QueryRequest struct {
	// Question is the natural-language question.
	Question string `json:"question"`

	// History is the conversation so far, oldest first.
	History []HistoryTurn `json:"history,omitempty"`

	// SessionID selects a stored conversation when History is empty.
	SessionID string `json:"session_id,omitempty"`
}

// QueryResult is the structured outcome of a question.
// Exactly one of Answer or Error is set.
type QueryResult struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the result carries an answer.
func (r QueryResult) OK() bool {
	return r.Error == "" && r.Answer != ""
}

// UploadResult describes an ingested upload.
type UploadResult struct {
	// Name is the stored document name.
	Name string `json:"name"`

	// Replaced is true when a document with the same name already existed.
	Replaced bool `json:"replaced"`

	// Queued is true when the sync was handed to the worker queue.
	Queued bool `json:"queued"`

	// Run is the inline sync run, nil when queued.
	Run *SyncRun `json:"run,omitempty"`
}

// SyncRequest asks the sync worker to run one sync.
type SyncRequest struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
