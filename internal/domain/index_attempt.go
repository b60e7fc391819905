package domain

import "time"

// AttemptStatus is the lifecycle state of an IndexAttempt. It also doubles
// as the mirrored status stored on a CCPair.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSuccess    AttemptStatus = "SUCCESS"
	AttemptFailed     AttemptStatus = "FAILED"
)

// IsTerminal reports whether s is a final, non-advancing state.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSuccess || s == AttemptFailed
}

// IndexAttempt is a single scheduled (and later executed) indexing run for
// one (connector, credential, embedding-model) triple.
type IndexAttempt struct {
	ID             int64
	ConnectorID    int64
	CredentialID   int64
	EmbeddingModel EmbeddingModel
	Status         AttemptStatus
	TimeCreated    time.Time
	TimeUpdated    time.Time
	FailureReason  *string

	// Connector/Credential are populated by Store Gateway reads that need
	// to tolerate the referenced rows having been deleted since the
	// attempt row was written (see Dispatcher, spec §4.5). A nil pointer
	// here means the row is gone.
	Connector  *Connector
	Credential *Credential
}

// Triple identifies the (connector, credential, model) this attempt is for.
type Triple struct {
	ConnectorID  int64
	CredentialID int64
	ModelID      int64
}

func (a IndexAttempt) Triple() Triple {
	return Triple{ConnectorID: a.ConnectorID, CredentialID: a.CredentialID, ModelID: a.EmbeddingModel.ID}
}

// CCPair is the (connector, credential) aggregate row carrying the
// user-visible indexing status, mirroring only the PRESENT model's most
// recent outcome.
type CCPair struct {
	ConnectorID   int64
	CredentialID  int64
	AttemptStatus AttemptStatus
}
