package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/devionx/uidshield/internal/core/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Record

	createErr error
	updateErr error

	markFailedIDs []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*domain.Record)}
}

func (r *fakeRepo) Create(_ context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	clone := *rec
	r.records[rec.ID] = &clone
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %s", id))
	}
	clone := *rec
	return &clone, nil
}

func (r *fakeRepo) Update(_ context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.records[rec.ID]; !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "update record", fmt.Errorf("id %s", rec.ID))
	}
	clone := *rec
	r.records[rec.ID] = &clone
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "mark record failed", fmt.Errorf("id %s", id))
	}
	rec.Status = domain.StatusFailed
	rec.Error = errMessage
	rec.SealedUIDs = nil
	rec.OriginalBlobKey = ""
	rec.MaskedBlobKey = ""
	r.markFailedIDs = append(r.markFailedIDs, id)
	return nil
}

func (r *fakeRepo) List(_ context.Context, _, _ int, _ string) (*domain.RecordPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := &domain.RecordPage{Total: len(r.records)}
	for _, rec := range r.records {
		page.Records = append(page.Records, *rec)
	}
	return page, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.WrapError(domain.ErrRecordNotFound, "delete record", fmt.Errorf("id %s", id))
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRepo) Ping(_ context.Context) error { return nil }

func (r *fakeRepo) get(id string) *domain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte

	failSaveSuffix string
	deleted        []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: make(map[string][]byte)}
}

func (b *fakeBlobs) Save(_ context.Context, key string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSaveSuffix != "" && bytes.HasSuffix([]byte(key), []byte(b.failSaveSuffix)) {
		return errors.New("disk full")
	}
	b.blobs[key] = payload
	return nil
}

func (b *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, ok := b.blobs[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "open blob", fmt.Errorf("key %s", key))
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) stored(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blobs[key]
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

// fakeSealer XORs every byte so the "ciphertext" never contains plaintext
// while the round trip stays trivially reversible.
type fakeSealer struct {
	sealErr error
}

func (s *fakeSealer) Seal(plaintext []byte) (domain.CipherBlob, error) {
	if s.sealErr != nil {
		return domain.CipherBlob{}, s.sealErr
	}
	out := make([]byte, len(plaintext))
	for i, c := range plaintext {
		out[i] = c ^ 0xAA
	}
	return domain.CipherBlob{
		Algorithm:  "fake-xor",
		KeyVersion: 1,
		Nonce:      []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		Ciphertext: out,
	}, nil
}

func (s *fakeSealer) Open(blob domain.CipherBlob) ([]byte, error) {
	if blob.Algorithm != "fake-xor" {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", errors.New("unknown algorithm"))
	}
	out := make([]byte, len(blob.Ciphertext))
	for i, c := range blob.Ciphertext {
		out[i] = c ^ 0xAA
	}
	return out, nil
}

func (s *fakeSealer) KeyVersion() int { return 1 }

type fakeRecognizer struct {
	name         string
	observations []domain.Observation
	err          error
}

func (f *fakeRecognizer) Name() string { return f.name }

func (f *fakeRecognizer) Recognize(_ context.Context, _ []byte) ([]domain.Observation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.observations, nil
}

func (f *fakeRecognizer) Close() error { return nil }

type fakeQueue struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (q *fakeQueue) PublishCardStaged(_ context.Context, recordID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, recordID)
	return nil
}

func (q *fakeQueue) SubscribeCardStaged(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}
