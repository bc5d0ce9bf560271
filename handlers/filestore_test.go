package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"atlastel.gr/crm/models"
	"atlastel.gr/crm/utils"
)

func familyFiles(versions ...int) []models.GeneratedFile {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	files := make([]models.GeneratedFile, 0, len(versions))
	for i, v := range versions {
		files = append(files, models.GeneratedFile{
			ID:        uuid.New(),
			Name:      utils.VersionedFileName("Acme", "RFP Pricing", v, ".xlsx"),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return files
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name     string
		existing []models.GeneratedFile
		expected int
	}{
		{"empty family starts at one", nil, 1},
		{"sequential versions", familyFiles(1, 2, 3), 4},
		{"gap from manual deletion is not refilled", familyFiles(1, 3), 4},
		{"order of records is irrelevant", familyFiles(3, 1, 2), 4},
		{"double digit versions", familyFiles(9, 10), 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextVersion(tt.existing))
		})
	}
}

func TestNextVersionIgnoresUnversionedNames(t *testing.T) {
	files := familyFiles(2)
	files = append(files, models.GeneratedFile{Name: "Acme - RFP Pricing.xlsx"})
	files = append(files, models.GeneratedFile{Name: "Acme - RFP Pricing - draft.xlsx"})
	assert.Equal(t, 3, nextVersion(files))
}

func TestEvictionVictim(t *testing.T) {
	files := familyFiles(1, 2, 3)
	// familyFiles assigns increasing CreatedAt, so v1 is the oldest.
	victim := evictionVictim(files)
	assert.NotNil(t, victim)
	assert.Equal(t, files[0].ID, victim.ID)

	// Oldest by CreatedAt, not by version number.
	files[2].CreatedAt = files[0].CreatedAt.Add(-time.Hour)
	victim = evictionVictim(files)
	assert.Equal(t, files[2].ID, victim.ID)

	assert.Nil(t, evictionVictim(nil))
}

func TestRetentionDecision(t *testing.T) {
	// With the cap reached, the pre-insert eviction leaves the count at
	// the cap after the new record lands.
	files := familyFiles(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	assert.Len(t, files, MaxRetainedVersions)
	assert.GreaterOrEqual(t, len(files), MaxRetainedVersions)

	victim := evictionVictim(files)
	assert.Equal(t, files[0].ID, victim.ID, "oldest CreatedAt must be evicted")
	assert.Equal(t, 11, nextVersion(files))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `Acme 100\% Ltd`, escapeLike("Acme 100% Ltd"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

// fakeFileDAL backs the store with an in-memory slice, enforcing the
// unique-name index the database carries.
type fakeFileDAL struct {
	records   []models.GeneratedFile
	deleteErr error
	conflict  *models.GeneratedFile // appended right before the next Create
	creates   int
}

func (d *fakeFileDAL) ListFamily(entityID uuid.UUID, entityType models.EntityType, prefix string) ([]models.GeneratedFile, error) {
	var out []models.GeneratedFile
	for _, r := range d.records {
		if r.EntityID == entityID && r.EntityType == entityType && strings.HasPrefix(r.Name, prefix) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *fakeFileDAL) ListEntity(entityID uuid.UUID, entityType models.EntityType) ([]models.GeneratedFile, error) {
	var out []models.GeneratedFile
	for _, r := range d.records {
		if r.EntityID == entityID && r.EntityType == entityType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *fakeFileDAL) Delete(id uuid.UUID) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	for i, r := range d.records {
		if r.ID == id {
			d.records = append(d.records[:i], d.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (d *fakeFileDAL) Create(record *models.GeneratedFile) error {
	d.creates++
	if d.conflict != nil {
		d.records = append(d.records, *d.conflict)
		d.conflict = nil
	}
	for _, r := range d.records {
		if r.EntityID == record.EntityID && r.EntityType == record.EntityType && r.Name == record.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	record.ID = uuid.New()
	d.records = append(d.records, *record)
	return nil
}

type fakeBlobStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	f.objects[objectPath] = data
	return "/uploads/" + objectPath, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, objectPath string) error {
	delete(f.objects, objectPath)
	f.deleted = append(f.deleted, objectPath)
	return nil
}

func fakeStore(dal *fakeFileDAL, blobs *fakeBlobStore) *FileStore {
	return &FileStore{
		dal:         dal,
		blobs:       blobs,
		maxVersions: MaxRetainedVersions,
		locks:       utils.NewKeyMutex(),
	}
}

func entityFamilyFiles(entityID uuid.UUID, versions ...int) []models.GeneratedFile {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	files := make([]models.GeneratedFile, 0, len(versions))
	for i, v := range versions {
		files = append(files, models.GeneratedFile{
			ID:          uuid.New(),
			Name:        utils.VersionedFileName("Acme", "RFP Pricing", v, ".xlsx"),
			EntityID:    entityID,
			EntityType:  models.EntityTypeLead,
			StoragePath: utils.VersionedFileName("acme", "rfp", v, ".xlsx"),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
	}
	return files
}

func saveRequest(entityID uuid.UUID) SaveRequest {
	return SaveRequest{
		EntityID:    entityID,
		EntityType:  models.EntityTypeLead,
		Reference:   "Acme",
		Family:      "RFP Pricing",
		Ext:         ".xlsx",
		ContentType: xlsxContentType,
		Data:        []byte("workbook"),
	}
}

func TestSaveVersionedEvictsAtCap(t *testing.T) {
	entityID := uuid.New()
	dal := &fakeFileDAL{records: entityFamilyFiles(entityID, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	oldest := dal.records[0]
	blobs := newFakeBlobStore()

	record, version, err := fakeStore(dal, blobs).SaveVersioned(context.Background(), saveRequest(entityID))
	require.NoError(t, err)

	assert.Equal(t, 11, version)
	assert.Equal(t, "Acme - RFP Pricing - v11.xlsx", record.Name)
	assert.Len(t, dal.records, MaxRetainedVersions, "the cap holds after the 11th generation")
	for _, r := range dal.records {
		assert.NotEqual(t, oldest.ID, r.ID, "oldest record must be evicted")
	}
	assert.Contains(t, blobs.deleted, oldest.StoragePath)
}

func TestSaveVersionedBelowCapKeepsAll(t *testing.T) {
	entityID := uuid.New()
	dal := &fakeFileDAL{records: entityFamilyFiles(entityID, 1, 2, 3)}
	blobs := newFakeBlobStore()

	_, version, err := fakeStore(dal, blobs).SaveVersioned(context.Background(), saveRequest(entityID))
	require.NoError(t, err)

	assert.Equal(t, 4, version)
	assert.Len(t, dal.records, 4)
	assert.Empty(t, blobs.deleted)
}

func TestSaveVersionedEvictionFailureAborts(t *testing.T) {
	entityID := uuid.New()
	dal := &fakeFileDAL{
		records:   entityFamilyFiles(entityID, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		deleteErr: errors.New("delete rejected"),
	}
	blobs := newFakeBlobStore()

	_, _, err := fakeStore(dal, blobs).SaveVersioned(context.Background(), saveRequest(entityID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evict")
	assert.Equal(t, 0, dal.creates, "nothing may be inserted after a failed eviction")
	assert.Empty(t, blobs.objects, "nothing may be uploaded after a failed eviction")
}

func TestSaveVersionedRetriesOnceOnCollision(t *testing.T) {
	entityID := uuid.New()
	dal := &fakeFileDAL{records: entityFamilyFiles(entityID, 1, 2, 3)}
	// A concurrent generation lands v4 between our read and our insert.
	dal.conflict = &models.GeneratedFile{
		ID:         uuid.New(),
		Name:       utils.VersionedFileName("Acme", "RFP Pricing", 4, ".xlsx"),
		EntityID:   entityID,
		EntityType: models.EntityTypeLead,
	}

	record, version, err := fakeStore(dal, newFakeBlobStore()).SaveVersioned(context.Background(), saveRequest(entityID))
	require.NoError(t, err)

	assert.Equal(t, 5, version, "collision must recompute, not overwrite")
	assert.Equal(t, "Acme - RFP Pricing - v5.xlsx", record.Name)
	assert.Equal(t, 2, dal.creates)
}

func TestSaveVersionedIgnoresUnversionedForRetention(t *testing.T) {
	entityID := uuid.New()
	records := entityFamilyFiles(entityID, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	stray := models.GeneratedFile{
		ID:         uuid.New(),
		Name:       "Acme - RFP Pricing.xlsx",
		EntityID:   entityID,
		EntityType: models.EntityTypeLead,
		CreatedAt:  records[0].CreatedAt.Add(-time.Hour), // older than every versioned record
	}
	dal := &fakeFileDAL{records: append([]models.GeneratedFile{stray}, records...)}
	oldestVersioned := records[0]

	_, version, err := fakeStore(dal, newFakeBlobStore()).SaveVersioned(context.Background(), saveRequest(entityID))
	require.NoError(t, err)
	assert.Equal(t, 11, version)

	var strayKept bool
	for _, r := range dal.records {
		assert.NotEqual(t, oldestVersioned.ID, r.ID, "eviction must pick the oldest versioned record")
		if r.ID == stray.ID {
			strayKept = true
		}
	}
	assert.True(t, strayKept, "an unversioned name must never be an eviction victim")
}
