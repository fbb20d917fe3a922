package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"learnhub/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type materialModel struct {
	ID           string                    `gorm:"column:id;primaryKey;size:36"`
	Title        string                    `gorm:"column:title;size:200;not null"`
	Description  string                    `gorm:"column:description;not null;default:''"`
	Type         string                    `gorm:"column:type;size:20;not null"`
	Subject      string                    `gorm:"column:subject;size:100;not null;default:''"`
	Topic        string                    `gorm:"column:topic;size:100;not null;default:''"`
	CourseID     string                    `gorm:"column:course_id;size:64;not null;default:''"`
	StorageKey   string                    `gorm:"column:storage_key;not null"`
	OriginalName string                    `gorm:"column:original_name;not null"`
	MimeType     string                    `gorm:"column:mime_type;size:100;not null"`
	Size         int64                     `gorm:"column:size;not null"`
	UploadedBy   int64                     `gorm:"column:uploaded_by;not null;index"`
	Assignments  []materialAssignmentModel `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time                 `gorm:"column:created_at"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at"`
}

func (materialModel) TableName() string { return "materials" }

type materialAssignmentModel struct {
	MaterialID string    `gorm:"column:material_id;primaryKey;size:36"`
	StudentID  int64     `gorm:"column:student_id;primaryKey;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (materialAssignmentModel) TableName() string { return "material_assignments" }

func toDomainMaterial(m materialModel) *domain.Material {
	assigned := make([]int64, 0, len(m.Assignments))
	for _, a := range m.Assignments {
		assigned = append(assigned, a.StudentID)
	}
	return &domain.Material{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Type:         domain.MaterialType(m.Type),
		Subject:      m.Subject,
		Topic:        m.Topic,
		CourseID:     m.CourseID,
		StorageKey:   m.StorageKey,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		Size:         m.Size,
		UploadedBy:   m.UploadedBy,
		AssignedTo:   assigned,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toMaterialModel(d *domain.Material) materialModel {
	assignments := make([]materialAssignmentModel, 0, len(d.AssignedTo))
	for _, id := range uniqueIDs(d.AssignedTo) {
		assignments = append(assignments, materialAssignmentModel{MaterialID: d.ID, StudentID: id})
	}
	return materialModel{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Type:         string(d.Type),
		Subject:      d.Subject,
		Topic:        d.Topic,
		CourseID:     d.CourseID,
		StorageKey:   d.StorageKey,
		OriginalName: d.OriginalName,
		MimeType:     d.MimeType,
		Size:         d.Size,
		UploadedBy:   d.UploadedBy,
		Assignments:  assignments,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MaterialFilter = domain.MaterialFilter

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) Create(ctx context.Context, m *domain.Material) error {
	model := toMaterialModel(m)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	*m = *toDomainMaterial(model)
	return nil
}

// GetByID returns (nil, nil) when the material does not exist.
func (r *MaterialRepository) GetByID(ctx context.Context, id string) (*domain.Material, error) {
	var m materialModel
	err := r.db.WithContext(ctx).Preload("Assignments").Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainMaterial(m), nil
}

func (r *MaterialRepository) List(ctx context.Context, f MaterialFilter) ([]*domain.Material, error) {
	q := r.db.WithContext(ctx).Preload("Assignments").Order("created_at DESC")
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Subject != "" {
		q = q.Where("subject = ?", f.Subject)
	}
	if f.CourseID != "" {
		q = q.Where("course_id = ?", f.CourseID)
	}
	if f.UploadedBy != 0 {
		q = q.Where("uploaded_by = ?", f.UploadedBy)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(topic) LIKE ?)", like, like)
	}

	var rows []materialModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainMaterials(rows), nil
}

func (r *MaterialRepository) ListAssignedTo(ctx context.Context, studentID int64) ([]*domain.Material, error) {
	var rows []materialModel
	err := r.db.WithContext(ctx).
		Preload("Assignments").
		Joins("JOIN material_assignments ma ON ma.material_id = materials.id").
		Where("ma.student_id = ?", studentID).
		Order("materials.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainMaterials(rows), nil
}

// Assign adds students to a material. Existing assignments are kept.
func (r *MaterialRepository) Assign(ctx context.Context, materialID string, studentIDs []int64) error {
	ids := uniqueIDs(studentIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]materialAssignmentModel, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, materialAssignmentModel{MaterialID: materialID, StudentID: id})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("material_id = ?", id).Delete(&materialAssignmentModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&materialModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func toDomainMaterials(rows []materialModel) []*domain.Material {
	out := make([]*domain.Material, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainMaterial(m))
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
