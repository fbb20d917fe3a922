// Package materials manages learning materials and their stored files.
package materials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/storage"
)

const (
	DefaultMaxFileSize = 50 << 20
	maxTitleLength     = 200
	sniffLength        = 512
)

// Repository finders return (nil, nil) when nothing matches.
type Repository interface {
	Create(ctx context.Context, m *domain.Material) error
	GetByID(ctx context.Context, id string) (*domain.Material, error)
	List(ctx context.Context, f domain.MaterialFilter) ([]*domain.Material, error)
	ListAssignedTo(ctx context.Context, studentID int64) ([]*domain.Material, error)
	Assign(ctx context.Context, materialID string, studentIDs []int64) error
	Delete(ctx context.Context, id string) error
}

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type Config struct {
	MaxFileSize int64
	Publisher   events.Publisher
	Logger      logging.Logger
	Now         func() time.Time
}

type Service struct {
	repo      Repository
	users     UserFinder
	blobs     storage.BlobStore
	maxSize   int64
	publisher events.Publisher
	log       logging.Logger
	now       func() time.Time
}

// UploadInput describes a new material. File must be positioned at its
// start and support seeking.
type UploadInput struct {
	Title       string
	Description string
	Type        string
	Subject     string
	Topic       string
	CourseID    string
	AssignTo    []int64
	FileName    string
	Size        int64
	File        io.ReadSeeker
}

func NewService(repo Repository, users UserFinder, blobs storage.BlobStore, cfg Config) *Service {
	s := &Service{
		repo:      repo,
		users:     users,
		blobs:     blobs,
		maxSize:   cfg.MaxFileSize,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxFileSize
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) MaxFileSize() int64 { return s.maxSize }

// Upload validates and stores the file, then records the material. The
// stored file is removed again if the record cannot be saved.
func (s *Service) Upload(ctx context.Context, uploaderID int64, in UploadInput) (*domain.Material, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domain.ErrInvalidTitle
	}
	mtype, err := domain.ParseMaterialType(in.Type)
	if err != nil {
		return nil, err
	}
	if in.Size <= 0 || in.File == nil {
		return nil, ErrEmptyFile
	}
	if in.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	mimeType, err := sniff(in.File)
	if err != nil {
		return nil, err
	}
	if !mtype.Accepts(mimeType) {
		return nil, ErrInvalidMimeType
	}

	assignees, err := s.checkStudents(ctx, in.AssignTo)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := storage.NewKey(in.FileName, mimeType, now)
	if err := s.blobs.Put(ctx, key, in.File, in.Size, mimeType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	m := &domain.Material{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Type:         mtype,
		Subject:      strings.TrimSpace(in.Subject),
		Topic:        strings.TrimSpace(in.Topic),
		CourseID:     strings.TrimSpace(in.CourseID),
		StorageKey:   key,
		OriginalName: in.FileName,
		MimeType:     mimeType,
		Size:         in.Size,
		UploadedBy:   uploaderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.rollbackBlob(ctx, key)
		return nil, fmt.Errorf("save material: %w", err)
	}

	if len(assignees) > 0 {
		if err := s.repo.Assign(ctx, m.ID, assignees); err != nil {
			if derr := s.repo.Delete(ctx, m.ID); derr != nil {
				s.log.Warn(ctx, "rollback material record failed", "material_id", m.ID, "error", derr)
			}
			s.rollbackBlob(ctx, key)
			return nil, fmt.Errorf("assign material: %w", err)
		}
		m.AssignedTo = assignees
	}

	s.log.Info(ctx, "material uploaded", "material_id", m.ID, "uploaded_by", uploaderID, "size", m.Size)
	ev := events.New(events.TypeMaterialUploaded, events.MaterialUploaded{
		MaterialID: m.ID,
		Title:      m.Title,
		Type:       string(m.Type),
		UploadedBy: uploaderID,
		AssignedTo: m.AssignedTo,
		CourseID:   m.CourseID,
	})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "publish material uploaded failed", "material_id", m.ID, "error", err)
	}
	return m, nil
}

func (s *Service) rollbackBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "rollback stored file failed", "key", key, "error", err)
	}
}

func (s *Service) List(ctx context.Context, f domain.MaterialFilter) ([]*domain.Material, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ListAssigned(ctx context.Context, studentID int64) ([]*domain.Material, error) {
	return s.repo.ListAssignedTo(ctx, studentID)
}

// Get returns the material if the caller may view it. Unviewable
// materials look missing.
func (s *Service) Get(ctx context.Context, userID int64, roles domain.Roles, id string) (*domain.Material, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.CanView(userID, roles) {
		return nil, ErrMaterialNotFound
	}
	return m, nil
}

// Download opens the stored file. The caller closes the reader.
func (s *Service) Download(ctx context.Context, userID int64, roles domain.Roles, id string) (*domain.Material, io.ReadCloser, error) {
	m, err := s.Get(ctx, userID, roles, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, m.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Error(ctx, "material file missing", "material_id", m.ID, "key", m.StorageKey)
		return nil, nil, ErrMaterialNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return m, rc, nil
}

func (s *Service) Delete(ctx context.Context, userID int64, roles domain.Roles, id string) error {
	m, err := s.manageable(ctx, userID, roles, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMaterialNotFound
		}
		return err
	}
	if err := s.blobs.Delete(ctx, m.StorageKey); err != nil {
		s.log.Warn(ctx, "delete stored file failed", "material_id", id, "key", m.StorageKey, "error", err)
	}
	s.log.Info(ctx, "material deleted", "material_id", id, "by", userID)
	return nil
}

// Assign adds students to the material and returns it with its full
// assignment list.
func (s *Service) Assign(ctx context.Context, userID int64, roles domain.Roles, id string, studentIDs []int64) (*domain.Material, error) {
	if _, err := s.manageable(ctx, userID, roles, id); err != nil {
		return nil, err
	}
	ids, err := s.checkStudents(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotAStudent
	}
	if err := s.repo.Assign(ctx, id, ids); err != nil {
		return nil, err
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMaterialNotFound
	}
	return m, nil
}

func (s *Service) manageable(ctx context.Context, userID int64, roles domain.Roles, id string) (*domain.Material, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMaterialNotFound
	}
	if !m.CanManage(userID, roles) {
		return nil, ErrForbidden
	}
	return m, nil
}

// checkStudents deduplicates ids and requires each to be a student account.
func (s *Service) checkStudents(ctx context.Context, ids []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find student: %w", err)
		}
		if u == nil || !u.Roles.Has(domain.RoleStudent) {
			return nil, fmt.Errorf("%w: user %d", ErrNotAStudent, id)
		}
		out = append(out, id)
	}
	return out, nil
}

// sniff detects the content type from the first bytes and rewinds r.
func sniff(r io.ReadSeeker) (string, error) {
	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read file: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	mimeType, _, _ := strings.Cut(http.DetectContentType(buf[:n]), ";")
	return strings.TrimSpace(mimeType), nil
}
