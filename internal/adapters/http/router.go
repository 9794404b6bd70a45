package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/core/ports"
	"github.com/devionx/uidshield/internal/observability/metrics"
)

type Router struct {
	processor ports.CardProcessor
	ingestor  ports.CardIngestor
	reader    ports.RecordReader
	admin     ports.RecordAdmin
	health    ports.HealthChecker

	maxFileBytes int64
	maxBulkFiles int

	rateLimitRPS   float64
	rateLimitBurst int

	httpMetrics *metrics.HTTPServerMetrics
}

type RouterOptions struct {
	MaxFileBytes   int64
	MaxBulkFiles   int
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPMetrics    *metrics.HTTPServerMetrics
}

func NewRouter(
	processor ports.CardProcessor,
	ingestor ports.CardIngestor,
	reader ports.RecordReader,
	admin ports.RecordAdmin,
	health ports.HealthChecker,
	options RouterOptions,
) *Router {
	if options.MaxFileBytes <= 0 {
		options.MaxFileBytes = 10 << 20
	}
	if options.MaxBulkFiles <= 0 {
		options.MaxBulkFiles = 10
	}
	return &Router{
		processor:      processor,
		ingestor:       ingestor,
		reader:         reader,
		admin:          admin,
		health:         health,
		maxFileBytes:   options.MaxFileBytes,
		maxBulkFiles:   options.MaxBulkFiles,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		httpMetrics:    options.HTTPMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/cards/process", rt.processCard)
	mux.HandleFunc("/v1/cards/bulk", rt.processBulk)
	mux.HandleFunc("/v1/cards/ingest", rt.ingestCard)
	mux.HandleFunc("/v1/cards", rt.cardsCollection)
	mux.HandleFunc("/v1/cards/", rt.cardByID)

	var handler http.Handler = mux
	handler = authPassthroughMiddleware(handler)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	health := rt.health.Check(r.Context())
	status := http.StatusOK
	if !health.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

type processResponse struct {
	Identifiers    []string `json:"identifiers"`
	LocationsFound int      `json:"locations_found"`
	Format         string   `json:"format"`
	ProcessingMS   float64  `json:"processing_ms"`
	MaskedImage    string   `json:"masked_image"`
}

func newProcessResponse(result *domain.ProcessResult) processResponse {
	return processResponse{
		Identifiers:    result.MaskedUIDs,
		LocationsFound: result.LocationsFound,
		Format:         result.Format,
		ProcessingMS:   float64(result.ProcessingTime.Microseconds()) / 1000.0,
		MaskedImage:    base64.StdEncoding.EncodeToString(result.MaskedImage),
	}
}

func (rt *Router) processCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	image, filename, err := rt.readUploadedFile(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	result, err := rt.processor.Process(r.Context(), image, filename)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(result))
}

type storedResponse struct {
	processResponse
	RecordID string `json:"record_id"`
}

func (rt *Router) cardsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.processAndStore(w, r)
	case http.MethodGet:
		rt.listCards(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) processAndStore(w http.ResponseWriter, r *http.Request) {
	image, filename, err := rt.readUploadedFile(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	result, err := rt.processor.ProcessAndStore(r.Context(), image, filename)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, storedResponse{
		processResponse: newProcessResponse(&result.ProcessResult),
		RecordID:        result.RecordID,
	})
}

func (rt *Router) processBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(rt.maxFileBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSONError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) > rt.maxBulkFiles {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("too many files: %d exceeds limit of %d", len(headers), rt.maxBulkFiles))
		return
	}

	items := make([]domain.BatchItem, 0, len(headers))
	for _, header := range headers {
		image, err := readFileHeader(header, rt.maxFileBytes)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		items = append(items, domain.BatchItem{Filename: header.Filename, Image: image})
	}

	result := rt.processor.ProcessBatch(r.Context(), items)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) ingestCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	image, filename, err := rt.readUploadedFile(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	rec, err := rt.ingestor.Stage(r.Context(), image, filename)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"record_id": rec.ID,
		"status":    string(rec.Status),
	})
}

func (rt *Router) listCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)

	result, err := rt.reader.List(r.Context(), page, pageSize, query.Get("search"))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) cardByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/cards/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "record id is required")
		return
	}

	switch {
	case sub == "image":
		rt.getCardImage(w, r, id)
	case sub != "":
		writeJSONError(w, http.StatusNotFound, "not found")
	case r.Method == http.MethodGet:
		rt.getCard(w, r, id)
	case r.Method == http.MethodDelete:
		rt.deleteCard(w, r, id)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) getCard(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := rt.reader.Get(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) getCardImage(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	which := r.URL.Query().Get("which")
	if which == "" {
		which = string(domain.BlobMasked)
	}
	kind := domain.BlobKind(which)
	if !kind.Valid() {
		writeJSONError(w, http.StatusBadRequest, "query parameter 'which' must be 'original' or 'masked'")
		return
	}

	rec, err := rt.reader.Get(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	data, err := rt.reader.RetrieveBlob(r.Context(), id, kind)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeForFormat(rec.Metadata.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) deleteCard(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.admin.Delete(r.Context(), id); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) readUploadedFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(rt.maxFileBytes); err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "read upload",
			errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	image, err := readAllLimited(file, rt.maxFileBytes)
	if err != nil {
		return nil, "", err
	}
	return image, header.Filename, nil
}

func readFileHeader(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open upload", err)
	}
	defer file.Close()
	return readAllLimited(file, maxBytes)
}

func readAllLimited(file io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload",
			fmt.Errorf("file exceeds limit of %d bytes", maxBytes))
	}
	return data, nil
}

func contentTypeForFormat(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
