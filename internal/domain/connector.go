package domain

// IngestionConnectorID is the reserved pseudo-connector used for documents
// pushed directly through the ingestion API. It must never receive
// auto-scheduled attempts.
const IngestionConnectorID int64 = 0

// Connector is a source configured to be crawled/fetched for documents.
type Connector struct {
	ID          int64
	Name        string
	Config      []byte // opaque connector-specific configuration (JSON)
	Disabled    bool
	RefreshFreq *int64 // seconds; nil means manual-only

	Credentials []CredentialAssociation
}

// Credential is opaque to the indexing loop; only its identifier matters.
type Credential struct {
	ID int64
}

// CredentialAssociation pairs a connector with a credential it may index
// documents under.
type CredentialAssociation struct {
	ConnectorID  int64
	CredentialID int64
	Credential   Credential
}

// IsIngestion reports whether c is the reserved ingestion pseudo-connector.
func (c Connector) IsIngestion() bool {
	return c.ID == IngestionConnectorID
}
