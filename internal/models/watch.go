package models

// WatchModel is a durable registration of interest in an event type,
// optionally narrowed to one subject and a set of filter constraints.
//
// Exactly one of UserID and Email is set: a watch belongs to a registered
// user or to a bare email address, never both. An empty ContentType or a
// nil SubjectID acts as a wildcard during resolution.
type WatchModel struct {
	Base
	EventType   string  `json:"event_type"   gorm:"index;not null;size:40"`
	ContentType string  `json:"content_type" gorm:"index;size:40"`
	SubjectID   *string `json:"subject_id"   gorm:"index;type:char(36)"`
	UserID      *string `json:"user_id"      gorm:"index;type:char(36)"`
	Email       string  `json:"email"        gorm:"index;size:254"`
	Secret      string  `json:"-"            gorm:"size:10"`
	IsActive    bool    `json:"is_active"    gorm:"index;default:false"`

	Filters []WatchFilterModel `json:"filters,omitempty" gorm:"foreignKey:WatchID;constraint:OnDelete:CASCADE"`
	User    *UserModel         `json:"-"                 gorm:"foreignKey:UserID"`
}

func (WatchModel) TableName() string { return "watches" }

// WatchFilterModel is one named scalar constraint on a watch. The natural
// value is stored hashed into the unsigned 32-bit range; see pkg/filterhash.
type WatchFilterModel struct {
	ID      uint   `json:"-"     gorm:"primaryKey"`
	WatchID string `json:"-"     gorm:"uniqueIndex:uniq_watch_filter;type:char(36);not null"`
	Name    string `json:"name"  gorm:"uniqueIndex:uniq_watch_filter;size:40;not null"`
	Value   uint32 `json:"value" gorm:"not null"`
}

func (WatchFilterModel) TableName() string { return "watch_filters" }
