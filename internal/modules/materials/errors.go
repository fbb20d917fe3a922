package materials

import "errors"

var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrForbidden        = errors.New("you cannot manage this material")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType  = errors.New("file type does not match material type")
	ErrEmptyFile        = errors.New("file is empty")
	ErrNotAStudent      = errors.New("materials can only be assigned to students")
)
