package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/parser"
)

// UploadResponse is returned after a document is accepted for ingestion.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// handleUpload accepts a multipart document upload, registers it in the
// document store, and queues it for background ingestion. Validation failures
// reject the upload before anything is written.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "file field is required",
		})
	}

	if fileHeader.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "Filename is required",
		})
	}

	// Flatten any client-supplied path so the file lands inside the upload
	// directory.
	filename := filepath.Base(fileHeader.Filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if !parser.Supported(ext) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("Unsupported file format: %s. Allowed: %s",
				ext, strings.Join(parser.SupportedExtensions, ", ")),
		})
	}

	maxBytes := int64(s.config.MaxFileMB) * 1024 * 1024
	if fileHeader.Size > maxBytes {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("File size exceeds %dMB limit", s.config.MaxFileMB),
		})
	}

	if fileHeader.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "Empty file uploaded",
		})
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		s.logger.Error("failed to create upload directory", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to store uploaded file",
		})
	}

	docID := docstore.NewDocumentID()
	path := filepath.Join(s.config.UploadDir, docID+"_"+filename)

	if err := c.SaveFile(fileHeader, path); err != nil {
		s.logger.Error("failed to save uploaded file", "error", err, "path", path)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to store uploaded file",
		})
	}

	doc := &docstore.Document{
		DocumentID: docID,
		Filename:   filename,
		FilePath:   path,
		FileType:   ext,
		Status:     docstore.StatusPending,
		UploadedAt: time.Now().UTC(),
	}

	if err := s.config.Docstore.Create(c.Context(), doc); err != nil {
		s.logger.Error("failed to register document", "error", err, "document_id", docID)
		_ = os.Remove(path)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to register document",
		})
	}

	if !s.config.Pool.Enqueue(ingest.Job{Document: doc}) {
		// Roll back so a retry does not collide with the orphaned record.
		if _, err := s.config.Docstore.Delete(c.Context(), docID); err != nil {
			s.logger.Error("failed to roll back document record", "error", err, "document_id", docID)
		}
		_ = os.Remove(path)
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "ingestion queue is full, try again later",
		})
	}

	s.logger.Info("document queued for ingestion",
		"document_id", docID,
		"filename", filename,
		"size_bytes", fileHeader.Size,
	)

	return c.JSON(UploadResponse{
		DocumentID: docID,
		Filename:   filename,
		Status:     string(docstore.StatusPending),
		Message:    "Document uploaded and queued for processing",
	})
}
