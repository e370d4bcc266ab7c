// Package repositorytest holds in-memory repositories for tests.
package repositorytest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
)

// MemoryCreativeRepository is an in-process CreativeRepository.
// The fingerprint uniqueness guard is a mutex held across the insert hook.
type MemoryCreativeRepository struct {
	mu        sync.Mutex
	creatives map[uuid.UUID]entity.Creative
	byFP      map[string]uuid.UUID
}

func NewMemoryCreativeRepository() *MemoryCreativeRepository {
	return &MemoryCreativeRepository{
		creatives: make(map[uuid.UUID]entity.Creative),
		byFP:      make(map[string]uuid.UUID),
	}
}

func (r *MemoryCreativeRepository) FindByFingerprint(_ context.Context, fingerprint string) (*entity.Creative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byFP[fingerprint]
	if !ok {
		return nil, nil
	}
	creative := r.creatives[id]
	return &creative, nil
}

func (r *MemoryCreativeRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Creative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creative, ok := r.creatives[id]
	if !ok {
		return nil, nil
	}
	return &creative, nil
}

func (r *MemoryCreativeRepository) InsertIfAbsent(_ context.Context, creative *entity.Creative, onInserted func(*entity.Creative) error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byFP[creative.Fingerprint]; ok {
		return false, nil
	}
	if onInserted != nil {
		if err := onInserted(creative); err != nil {
			return false, err
		}
	}
	r.creatives[creative.ID] = *creative
	r.byFP[creative.Fingerprint] = creative.ID
	return true, nil
}

func (r *MemoryCreativeRepository) UpdateThumbnail(_ context.Context, id uuid.UUID, thumbnailPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creative, ok := r.creatives[id]
	if !ok {
		return apperr.ErrNotFound
	}
	creative.ThumbnailPath = &thumbnailPath
	r.creatives[id] = creative
	return nil
}

func (r *MemoryCreativeRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creative, ok := r.creatives[id]
	if !ok {
		return nil
	}
	delete(r.byFP, creative.Fingerprint)
	delete(r.creatives, id)
	return nil
}

func (r *MemoryCreativeRepository) List(_ context.Context, filter repository.CreativeFilter) ([]entity.Creative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Creative, 0, len(r.creatives))
	for _, c := range r.creatives {
		if filter.BatchGroupID != nil && (c.BatchGroupID == nil || *c.BatchGroupID != *filter.BatchGroupID) {
			continue
		}
		if filter.MimeClass != "" && c.MimeClass != filter.MimeClass {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCreativeRepository) AssignBatchGroup(_ context.Context, creativeIDs []uuid.UUID, groupID *uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range creativeIDs {
		creative, ok := r.creatives[id]
		if !ok {
			continue
		}
		creative.BatchGroupID = groupID
		r.creatives[id] = creative
		n++
	}
	return n, nil
}

func (r *MemoryCreativeRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creatives)
}

type accountKey struct {
	creativeID  uuid.UUID
	adAccountID string
}

// MemoryAccountUploadRepository is an in-process AccountUploadRepository.
type MemoryAccountUploadRepository struct {
	mu      sync.Mutex
	records map[accountKey]entity.AccountUpload
}

func NewMemoryAccountUploadRepository() *MemoryAccountUploadRepository {
	return &MemoryAccountUploadRepository{records: make(map[accountKey]entity.AccountUpload)}
}

func (r *MemoryAccountUploadRepository) Find(_ context.Context, creativeID uuid.UUID, adAccountID string) (*entity.AccountUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[accountKey{creativeID, adAccountID}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryAccountUploadRepository) Upsert(_ context.Context, record *entity.AccountUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[accountKey{record.CreativeID, record.AdAccountID}] = *record
	return nil
}

func (r *MemoryAccountUploadRepository) ListByCreative(_ context.Context, creativeID uuid.UUID) ([]entity.AccountUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.AccountUpload
	for key, record := range r.records {
		if key.creativeID == creativeID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (r *MemoryAccountUploadRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// MemoryDuplicationJobRepository is an in-process DuplicationJobRepository.
type MemoryDuplicationJobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.DuplicationJob
}

func NewMemoryDuplicationJobRepository() *MemoryDuplicationJobRepository {
	return &MemoryDuplicationJobRepository{jobs: make(map[uuid.UUID]entity.DuplicationJob)}
}

func (r *MemoryDuplicationJobRepository) Create(_ context.Context, job *entity.DuplicationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryDuplicationJobRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.DuplicationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (r *MemoryDuplicationJobRepository) Update(_ context.Context, job *entity.DuplicationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return apperr.ErrNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}
