package models

import "time"

// Lead represents a CRM lead. The engine only reads leads; lead CRUD lives
// in the surrounding application and reaches the engine as domain events.
type Lead struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Name           string         `json:"name"`
	Phone          string         `json:"phone"`
	Email          string         `json:"email"`
	StageID        string         `json:"stage_id"`
	Tags           []string       `json:"tags,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasTag reports whether the lead carries the given tag id.
func (l *Lead) HasTag(tagID string) bool {
	for _, tag := range l.Tags {
		if tag == tagID {
			return true
		}
	}

	return false
}

// Field resolves a field by name, checking the built-in columns before the
// custom field bag.
func (l *Lead) Field(name string) (any, bool) {
	switch name {
	case "name":
		return l.Name, true
	case "phone":
		return l.Phone, true
	case "email":
		return l.Email, true
	case "stage_id":
		return l.StageID, true
	}

	value, ok := l.Fields[name]

	return value, ok
}
