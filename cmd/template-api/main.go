package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
	"github.com/Lllllllleong/pdftemplatefill/internal/services"
)

// filledFileName is the attachment name of generated documents.
const filledFileName = "filled_template.pdf"

var (
	serviceInstance *services.TemplateService
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleUploadTemplate", handleUploadTemplate)
	functions.HTTP("HandleGetManifest", handleGetManifest)
	functions.HTTP("HandleGenerateDocument", handleGenerateDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func service(w http.ResponseWriter) *services.TemplateService {
	once.Do(func() {
		serviceInstance, initErr = services.NewTemplateService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return nil
	}
	return serviceInstance
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	services.WriteJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Message: "method " + r.Method + " not allowed"})
	return false
}

// handleUploadTemplate accepts a multipart "file" field holding a PDF.
func handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	svc := service(w)
	if svc == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			services.WriteError(w, apperrors.New(apperrors.KindValidation, "file exceeds the %d byte limit", services.MaxUploadSize))
			return
		}
		services.WriteError(w, apperrors.Wrap(apperrors.KindValidation, err, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadSize+1))
	if err != nil {
		services.WriteError(w, apperrors.Wrap(apperrors.KindValidation, err, "failed to read upload"))
		return
	}

	res, err := svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, res)
}

// handleGetManifest serves GET .../templates/{id}/manifest; the id may also
// be given as the templateId query parameter.
func handleGetManifest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	svc := service(w)
	if svc == nil {
		return
	}

	id := templateIDFromPath(r.URL.Path)
	if id == "" {
		id = r.URL.Query().Get("templateId")
	}
	if id == "" {
		services.WriteError(w, apperrors.New(apperrors.KindValidation, "templateId is required"))
		return
	}
	res, err := svc.GetManifest(r.Context(), id)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, res)
}

func templateIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "templates" {
			return parts[i+1]
		}
	}
	return ""
}

// handleGenerateDocument fills a template and returns the PDF as an attachment.
func handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	svc := service(w)
	if svc == nil {
		return
	}

	var req models.GenerateRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		services.WriteError(w, apperrors.Wrap(apperrors.KindValidation, err, "could not parse JSON"))
		return
	}

	pdf, err := svc.Generate(r.Context(), &req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	services.WritePDF(w, filledFileName, pdf)
}
