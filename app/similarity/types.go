package similarity

import (
	"context"
)

// Verdict is the duplicate-check result from the similarity service.
type Verdict struct {
	Duplicate  bool
	Similarity *float64
	// ChromaID is the content identifier assigned by the service, possibly
	// carrying a trailing chunk suffix (see ExtractBaseID).
	ChromaID string
}

// Checker is the narrow interface the pipeline depends on.
type Checker interface {
	// Check submits article text for a check-and-remember duplicate verdict.
	// A transport or service-level failure is returned as an error and must
	// not be interpreted as "unique".
	Check(ctx context.Context, content, summary string) (*Verdict, error)
}

// ServiceConfig mirrors the collaborator's /config endpoint.
type ServiceConfig struct {
	Threshold float64 `json:"threshold"`
}

type checkRequest struct {
	Content string `json:"content"`
	Summary string `json:"summary,omitempty"`
}

type checkResponse struct {
	Duplicate   *bool    `json:"duplicate"`
	IsDuplicate *bool    `json:"is_duplicate"`
	Similarity  *float64 `json:"similarity"`
	ChromaID    string   `json:"chroma_id"`
	ParentID    string   `json:"parent_id"`
}

type deleteBatchRequest struct {
	ParentIDs []string `json:"parent_ids"`
}

type deleteBatchResponse struct {
	Status string `json:"status"`
}
