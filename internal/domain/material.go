package domain

import (
	"strings"
	"time"
)

type MaterialType string

const (
	MaterialPDF   MaterialType = "pdf"
	MaterialVideo MaterialType = "video"
	MaterialImage MaterialType = "image"
	MaterialNotes MaterialType = "notes"
)

// allowedMimeTypes lists the sniffed content types accepted per material type.
var allowedMimeTypes = map[MaterialType]map[string]bool{
	MaterialPDF: {
		"application/pdf": true,
	},
	MaterialVideo: {
		"video/mp4":  true,
		"video/webm": true,
	},
	MaterialImage: {
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	},
	MaterialNotes: {
		"text/plain":      true,
		"application/pdf": true,
	},
}

func ParseMaterialType(raw string) (MaterialType, error) {
	t := MaterialType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allowedMimeTypes[t]; !ok {
		return "", ErrInvalidMaterialType
	}
	return t, nil
}

// Accepts reports whether a file with the given content type can be stored as t.
func (t MaterialType) Accepts(mimeType string) bool {
	return allowedMimeTypes[t][mimeType]
}

type Material struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Type         MaterialType `json:"type"`
	Subject      string       `json:"subject,omitempty"`
	Topic        string       `json:"topic,omitempty"`
	CourseID     string       `json:"course_id,omitempty"`
	StorageKey   string       `json:"-"`
	OriginalName string       `json:"original_name"`
	MimeType     string       `json:"mime_type"`
	Size         int64        `json:"size"`
	UploadedBy   int64        `json:"uploaded_by"`
	AssignedTo   []int64      `json:"assigned_to"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MaterialFilter narrows material listings. Zero fields are ignored.
type MaterialFilter struct {
	Type       MaterialType
	Subject    string
	CourseID   string
	UploadedBy int64
	// Search matches title or topic, case-insensitively.
	Search     string
}

// CanManage reports whether user may delete or reassign the material.
func (m *Material) CanManage(userID int64, roles Roles) bool {
	if roles.HasAny(RoleAdmin, RoleSuperAdmin) {
		return true
	}
	return roles.Has(RoleTutor) && m.UploadedBy == userID
}

// CanView reports whether user may read the material and its file. Staff
// see everything; everyone else only what is assigned to them.
func (m *Material) CanView(userID int64, roles Roles) bool {
	if roles.HasAny(RoleAdmin, RoleSuperAdmin, RoleTutor) {
		return true
	}
	return m.IsAssignedTo(userID)
}

func (m *Material) IsAssignedTo(studentID int64) bool {
	for _, id := range m.AssignedTo {
		if id == studentID {
			return true
		}
	}
	return false
}
