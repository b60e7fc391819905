package domain

// ModelStatus is the lifecycle stage of an EmbeddingModel. Exactly one
// model is PRESENT at any moment; at most one is FUTURE; any number are
// PAST.
type ModelStatus string

const (
	ModelPresent ModelStatus = "PRESENT"
	ModelFuture  ModelStatus = "FUTURE"
	ModelPast    ModelStatus = "PAST"
)

// EmbeddingModel is a vectorization configuration the indexing loop can
// build an index against. The loop never creates models; it only owns the
// FUTURE -> PRESENT -> PAST transitions performed by the swap.
type EmbeddingModel struct {
	ID     int64
	Status ModelStatus
}
