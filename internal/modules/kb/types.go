package kb

// CreateDocumentDTO is the body for creating a document.
type CreateDocumentDTO struct {
	Title  string `json:"title"  binding:"required"`
	Slug   string `json:"slug"   binding:"required"`
	Locale string `json:"locale"`
}

// CreateRevisionDTO is the body for submitting a revision.
type CreateRevisionDTO struct {
	Content string `json:"content" binding:"required"`
	Comment string `json:"comment"`
}

// WatchLocaleDTO is the body for watch subscriptions. The locale or
// document comes from the URL; Email is needed only for anonymous watchers.
type WatchLocaleDTO struct {
	Email string `json:"email" binding:"omitempty,email"`
}
