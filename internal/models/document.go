package models

// DocumentModel is a knowledge-base article. Revisions accumulate under it
// and reviewers watch for new ones, usually scoped to a locale.
type DocumentModel struct {
	Base
	Title  string `json:"title"  gorm:"not null"`
	Slug   string `json:"slug"   gorm:"uniqueIndex;not null;size:190"`
	Locale string `json:"locale" gorm:"index;size:10;not null;default:'en-US'"`

	Revisions []RevisionModel `json:"revisions,omitempty" gorm:"foreignKey:DocumentID"`
}

func (DocumentModel) TableName() string { return "documents" }

// RevisionModel is one proposed change to a document.
type RevisionModel struct {
	Base
	DocumentID string `json:"document_id" gorm:"index;type:char(36);not null"`
	CreatorID  string `json:"creator_id"  gorm:"index;type:char(36);not null"`
	Content    string `json:"content"     gorm:"type:longtext"`
	Comment    string `json:"comment"`
	IsReviewed bool   `json:"is_reviewed" gorm:"default:false"`
}

func (RevisionModel) TableName() string { return "revisions" }
