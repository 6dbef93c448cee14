package handler

import (
	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/orchestrator"
	"github.com/atelierhq/evolink-http/internal/storage"
)

// Handler bundles the gateway's collaborators for the route handlers.
type Handler struct {
	Client       *evolink.Client
	Orchestrator *orchestrator.Orchestrator
	Blobs        storage.BlobStore
}

func New(client *evolink.Client, orch *orchestrator.Orchestrator, blobs storage.BlobStore) *Handler {
	return &Handler{
		Client:       client,
		Orchestrator: orch,
		Blobs:        blobs,
	}
}
