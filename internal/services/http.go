package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// WriteJSON encodes body as the JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}

// WriteError maps err to a status code and a {code, message, details} body.
// Errors without a kind are reported as internal failures without details.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	resp := models.ErrorResponse{Code: string(kind), Message: err.Error()}
	if kind == "" {
		resp.Code = "INTERNAL_ERROR"
		resp.Message = "Internal Server Error: processing failed"
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Cause != nil {
		resp.Message = appErr.Message
		resp.Details = appErr.Cause.Error()
	}
	WriteJSON(w, apperrors.HTTPStatus(kind), resp)
}

// WritePDF sends data as a downloadable PDF attachment.
func WritePDF(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write PDF response.", "error", err)
	}
}
