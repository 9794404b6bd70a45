package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devionx/uidshield/internal/core/domain"
)

type processorFake struct {
	result     *domain.ProcessResult
	stored     *domain.StoredResult
	batch      *domain.BatchResult
	processErr error
	storeErr   error
}

func (f *processorFake) Process(_ context.Context, _ []byte, _ string) (*domain.ProcessResult, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	return f.result, nil
}

func (f *processorFake) ProcessAndStore(_ context.Context, _ []byte, _ string) (*domain.StoredResult, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f.stored, nil
}

func (f *processorFake) ProcessBatch(_ context.Context, items []domain.BatchItem) *domain.BatchResult {
	if f.batch != nil {
		return f.batch
	}
	return &domain.BatchResult{Total: len(items)}
}

type ingestorFake struct {
	rec *domain.Record
	err error
}

func (f *ingestorFake) Stage(_ context.Context, _ []byte, _ string) (*domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

type readerFake struct {
	rec  *domain.Record
	page *domain.RecordPage
	blob []byte
	err  error
}

func (f *readerFake) Get(_ context.Context, _ string) (*domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *readerFake) List(_ context.Context, _, _ int, _ string) (*domain.RecordPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *readerFake) RetrieveBlob(_ context.Context, _ string, _ domain.BlobKind) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blob, nil
}

type adminFake struct {
	err error
}

func (f *adminFake) Delete(_ context.Context, _ string) error { return f.err }

type healthFake struct {
	health domain.Health
}

func (f *healthFake) Check(_ context.Context) domain.Health { return f.health }

type routerFakes struct {
	processor *processorFake
	ingestor  *ingestorFake
	reader    *readerFake
	admin     *adminFake
	health    *healthFake
}

func newTestRouter(fakes routerFakes, options RouterOptions) http.Handler {
	if fakes.processor == nil {
		fakes.processor = &processorFake{}
	}
	if fakes.ingestor == nil {
		fakes.ingestor = &ingestorFake{}
	}
	if fakes.reader == nil {
		fakes.reader = &readerFake{}
	}
	if fakes.admin == nil {
		fakes.admin = &adminFake{}
	}
	if fakes.health == nil {
		fakes.health = &healthFake{health: domain.Health{EnvelopeReady: true, StoreReady: true}}
	}
	return NewRouter(fakes.processor, fakes.ingestor, fakes.reader, fakes.admin, fakes.health, options).Handler()
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	handler = newTestRouter(routerFakes{
		health: &healthFake{health: domain.Health{EnvelopeReady: true, StoreReady: false}},
	}, RouterOptions{})
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when store is down, got %d", res.Code)
	}
}

func TestProcessCardSuccess(t *testing.T) {
	handler := newTestRouter(routerFakes{
		processor: &processorFake{result: &domain.ProcessResult{
			MaskedUIDs:     []string{"XXXX XXXX 9012"},
			MaskedImage:    []byte("masked-bytes"),
			Format:         "png",
			LocationsFound: 1,
		}},
	}, RouterOptions{})

	body, contentType := multipartBody(t, "file", map[string][]byte{"card.png": []byte("image-bytes")})
	req := httptest.NewRequest(http.MethodPost, "/v1/cards/process", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	ids, ok := resp["identifiers"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "XXXX XXXX 9012" {
		t.Fatalf("unexpected identifiers: %v", resp["identifiers"])
	}
	if resp["masked_image"] == "" {
		t.Fatalf("expected base64 masked image in response")
	}
}

func TestProcessCardMissingMultipartField(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/cards/process", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestProcessCardErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "validate", fmt.Errorf("empty")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnreadableImage, "decode", fmt.Errorf("bad")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNoIdentifier, "extract", fmt.Errorf("none")), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrEngineUnavailable, "recognize", fmt.Errorf("down")), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		handler := newTestRouter(routerFakes{
			processor: &processorFake{processErr: tc.err},
		}, RouterOptions{})

		body, contentType := multipartBody(t, "file", map[string][]byte{"card.png": []byte("image")})
		req := httptest.NewRequest(http.MethodPost, "/v1/cards/process", body)
		req.Header.Set("Content-Type", contentType)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
	}
}

func TestStoreCardReturnsCreated(t *testing.T) {
	handler := newTestRouter(routerFakes{
		processor: &processorFake{stored: &domain.StoredResult{
			ProcessResult: domain.ProcessResult{MaskedUIDs: []string{"XXXX XXXX 9012"}, Format: "png"},
			RecordID:      "rec-1",
		}},
	}, RouterOptions{})

	body, contentType := multipartBody(t, "file", map[string][]byte{"card.png": []byte("image")})
	req := httptest.NewRequest(http.MethodPost, "/v1/cards", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["record_id"] != "rec-1" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestBulkRejectsTooManyFiles(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{MaxBulkFiles: 2})

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"a.png": []byte("a"),
		"b.png": []byte("b"),
		"c.png": []byte("c"),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/cards/bulk", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIngestReturnsAccepted(t *testing.T) {
	handler := newTestRouter(routerFakes{
		ingestor: &ingestorFake{rec: &domain.Record{ID: "rec-9", Status: domain.StatusProcessing}},
	}, RouterOptions{})

	body, contentType := multipartBody(t, "file", map[string][]byte{"card.png": []byte("image")})
	req := httptest.NewRequest(http.MethodPost, "/v1/cards/ingest", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["record_id"] != "rec-9" || resp["status"] != "processing" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestGetCardNotFound(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reader: &readerFake{err: domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id missing"))},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetCardImageServesDecryptedBytes(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reader: &readerFake{
			rec:  &domain.Record{ID: "rec-1", Metadata: domain.ProcessingMetadata{Format: "png"}},
			blob: []byte("decrypted image"),
		},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards/rec-1/image?which=masked", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if res.Body.String() != "decrypted image" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestGetCardImageRejectsUnknownKind(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards/rec-1/image?which=thumbnail", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDeleteCardReturnsNoContent(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/cards/rec-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestListCardsPassesPagination(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reader: &readerFake{page: &domain.RecordPage{Total: 0, Records: []domain.Record{}}},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards?page=2&page_size=5&search=card", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
