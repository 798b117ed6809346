package api

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/utils"
)

// HealthResponse reports service liveness and index readiness.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	DocumentsCount   int    `json:"documents_count"`
	VectorStoreReady bool   `json:"vector_store_ready"`
}

// DocumentStatusResponse reports where a document is in the ingestion
// pipeline.
type DocumentStatusResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "folio",
		"version": utils.Version,
		"health":  "/api/v1/health",
	})
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	count, err := s.config.Docstore.Count(c.Context())
	if err != nil {
		s.logger.Error("health check failed to count documents", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to query document store",
		})
	}

	return c.JSON(HealthResponse{
		Status:           "healthy",
		Version:          utils.Version,
		DocumentsCount:   count,
		VectorStoreReady: s.config.VectorDriver.Ready(c.Context()),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(s.config.Metrics.Snapshot())
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs, err := s.config.Docstore.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to list documents",
		})
	}

	return c.JSON(docs)
}

// statusMessage renders the human-readable processing state shown to
// clients polling a document.
func statusMessage(doc *docstore.Document) string {
	switch doc.Status {
	case docstore.StatusFailed:
		reason := doc.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return "Processing failed: " + reason
	case docstore.StatusCompleted:
		return fmt.Sprintf("Processing complete. Created %d chunks.", doc.ChunkCount)
	case docstore.StatusProcessing:
		return "Document is being processed..."
	default:
		return "Document is queued for processing"
	}
}

func (s *Server) handleDocumentStatus(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := s.config.Docstore.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
				Error: "Document not found",
			})
		}
		s.logger.Error("failed to load document", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to load document",
		})
	}

	return c.JSON(DocumentStatusResponse{
		DocumentID: doc.DocumentID,
		Status:     string(doc.Status),
		ChunkCount: doc.ChunkCount,
		Message:    statusMessage(doc),
	})
}

func (s *Server) handleDocumentChunks(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := s.config.Docstore.Get(c.Context(), id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
				Error: "Document not found",
			})
		}
		s.logger.Error("failed to load document", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to load document",
		})
	}

	chunks, err := s.config.VectorDriver.Chunks(c.Context(), id)
	if err != nil {
		s.logger.Error("failed to load document chunks", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to load document chunks",
		})
	}

	return c.JSON(fiber.Map{
		"document_id": id,
		"chunks":      chunks,
		"count":       len(chunks),
	})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := s.config.Docstore.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
				Error: "Document not found",
			})
		}
		s.logger.Error("failed to load document", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to load document",
		})
	}

	if _, err := s.config.VectorDriver.DeleteDocument(c.Context(), id); err != nil {
		s.logger.Error("failed to remove document from index", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to remove document from index",
		})
	}

	if err := s.config.VectorDriver.Save(c.Context()); err != nil {
		s.logger.Error("failed to persist index after delete", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to persist index",
		})
	}

	// The stored record is the authority; a missing file on disk is not an
	// error.
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove document file", "error", err, "path", doc.FilePath)
	}

	if _, err := s.config.Docstore.Delete(c.Context(), id); err != nil {
		s.logger.Error("failed to delete document record", "error", err, "document_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to delete document record",
		})
	}

	if s.config.Publisher != nil {
		event := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, "api", *doc)
		if err := s.config.Publisher.PublishDocument(c.Context(), event); err != nil {
			s.logger.Warn("failed to publish delete event", "error", err, "document_id", id)
		}
	}

	s.logger.Info("document deleted", "document_id", id, "filename", doc.Filename)

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Document %s deleted successfully", id),
	})
}
