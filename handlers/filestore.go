package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"atlastel.gr/crm/models"
	"atlastel.gr/crm/utils"
)

// MaxRetainedVersions caps how many generated files one (entity, family)
// pair keeps; the oldest is evicted before the cap would be exceeded.
const MaxRetainedVersions = 10

// generatedFileDAL is the persistence seam of the versioned store. The
// gorm implementation is the only one used in production; tests drive the
// store through a fake.
type generatedFileDAL interface {
	ListFamily(entityID uuid.UUID, entityType models.EntityType, prefix string) ([]models.GeneratedFile, error)
	ListEntity(entityID uuid.UUID, entityType models.EntityType) ([]models.GeneratedFile, error)
	Delete(id uuid.UUID) error
	Create(record *models.GeneratedFile) error
}

type gormFileDAL struct {
	db *gorm.DB
}

func (d *gormFileDAL) ListFamily(entityID uuid.UUID, entityType models.EntityType, prefix string) ([]models.GeneratedFile, error) {
	var files []models.GeneratedFile
	err := d.db.Where("entity_id = ? AND entity_type = ? AND name LIKE ?",
		entityID, entityType, escapeLike(prefix)+"%").
		Order("created_at DESC").Find(&files).Error
	return files, err
}

func (d *gormFileDAL) ListEntity(entityID uuid.UUID, entityType models.EntityType) ([]models.GeneratedFile, error) {
	var files []models.GeneratedFile
	err := d.db.Where("entity_id = ? AND entity_type = ?", entityID, entityType).
		Order("created_at DESC").Find(&files).Error
	return files, err
}

func (d *gormFileDAL) Delete(id uuid.UUID) error {
	return d.db.Delete(&models.GeneratedFile{}, "id = ?", id).Error
}

func (d *gormFileDAL) Create(record *models.GeneratedFile) error {
	return d.db.Create(record).Error
}

// FileStore owns every GeneratedFile record: it assigns version numbers,
// uploads artifacts, prunes overflow and is the only writer of the table.
type FileStore struct {
	dal         generatedFileDAL
	blobs       BlobStore
	maxVersions int
	locks       *utils.KeyMutex
}

func NewFileStore(db *gorm.DB, blobs BlobStore) *FileStore {
	return &FileStore{
		dal:         &gormFileDAL{db: db},
		blobs:       blobs,
		maxVersions: MaxRetainedVersions,
		locks:       utils.NewKeyMutex(),
	}
}

// SaveRequest describes one artifact to version and persist.
type SaveRequest struct {
	EntityID    uuid.UUID
	EntityType  models.EntityType
	Reference   string // customer/lead display reference, any script
	Family      string // document family label, e.g. "RFP Pricing", "BOM"
	Ext         string // ".xlsx"
	ContentType string
	Data        []byte
	Description string
	GeneratedBy *uuid.UUID
}

// SaveVersioned assigns the next version for the (entity, family) pair,
// evicts the oldest record if the retention cap is reached, uploads the
// artifact and inserts its metadata record. The whole sequence runs under
// a per-(entity, family) lock so concurrent generations for the same
// family cannot hand out the same version.
func (s *FileStore) SaveVersioned(ctx context.Context, req SaveRequest) (*models.GeneratedFile, int, error) {
	key := req.EntityID.String() + "|" + string(req.EntityType) + "|" + req.Family
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	existing, err := s.dal.ListFamily(req.EntityID, req.EntityType, utils.FamilyPrefix(req.Reference, req.Family))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list existing files: %w", err)
	}

	// Only records carrying a version marker participate in retention:
	// an unversioned name that happens to share the prefix neither counts
	// toward the cap nor gets evicted.
	versioned := versionedOnly(existing)

	// Evict before inserting so the store never exceeds the cap, not even
	// transiently. An eviction failure aborts the generation: proceeding
	// would silently grow the family past the cap.
	if len(versioned) >= s.maxVersions {
		victim := evictionVictim(versioned)
		if err := s.dal.Delete(victim.ID); err != nil {
			return nil, 0, fmt.Errorf("failed to evict oldest file %q: %w", victim.Name, err)
		}
		if victim.StoragePath != "" {
			if err := s.blobs.Delete(ctx, victim.StoragePath); err != nil {
				log.Printf("⚠️ Could not delete evicted blob %s: %v", victim.StoragePath, err)
			}
		}
	}

	version := nextVersion(existing)
	record, err := s.insert(ctx, req, version)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process slipped in the same name. Recompute from the
		// table once, then fail loudly rather than overwrite.
		existing, lerr := s.dal.ListFamily(req.EntityID, req.EntityType, utils.FamilyPrefix(req.Reference, req.Family))
		if lerr != nil {
			return nil, 0, fmt.Errorf("failed to re-list after version collision: %w", lerr)
		}
		record, err = s.insert(ctx, req, nextVersion(existing))
	}
	if err != nil {
		return nil, 0, err
	}
	return record, utils.ParseVersion(record.Name), nil
}

// ListEntityFiles returns an entity's generated files, newest first.
func (s *FileStore) ListEntityFiles(entityID uuid.UUID, entityType models.EntityType) ([]models.GeneratedFile, error) {
	return s.dal.ListEntity(entityID, entityType)
}

func (s *FileStore) insert(ctx context.Context, req SaveRequest, version int) (*models.GeneratedFile, error) {
	name := utils.VersionedFileName(req.Reference, req.Family, version, req.Ext)
	objectPath := fmt.Sprintf("generated/%s/%s-%s%s",
		req.EntityID, time.Now().Format("20060102-150405"),
		slug.Make(strings.TrimSuffix(name, req.Ext)), req.Ext)

	url, err := s.blobs.Put(ctx, objectPath, req.Data, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	record := models.GeneratedFile{
		Name:          name,
		EntityID:      req.EntityID,
		EntityType:    req.EntityType,
		URL:           url,
		StoragePath:   objectPath,
		Size:          int64(len(req.Data)),
		FileType:      req.ContentType,
		Description:   req.Description,
		GeneratedByID: req.GeneratedBy,
	}
	if err := s.dal.Create(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// nextVersion is max(parsed versions)+1, or 1 when the family is empty.
// Gaps from manual deletion are not refilled.
func nextVersion(existing []models.GeneratedFile) int {
	max := 0
	for _, f := range existing {
		if v := utils.ParseVersion(f.Name); v > max {
			max = v
		}
	}
	return max + 1
}

// versionedOnly filters to the records whose name carries a version suffix.
func versionedOnly(existing []models.GeneratedFile) []models.GeneratedFile {
	out := make([]models.GeneratedFile, 0, len(existing))
	for _, f := range existing {
		if utils.ParseVersion(f.Name) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// evictionVictim picks the record with the oldest CreatedAt.
func evictionVictim(existing []models.GeneratedFile) *models.GeneratedFile {
	if len(existing) == 0 {
		return nil
	}
	victim := &existing[0]
	for i := range existing {
		if existing[i].CreatedAt.Before(victim.CreatedAt) {
			victim = &existing[i]
		}
	}
	return victim
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
