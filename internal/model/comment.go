package model

// Comment is an append-only note on a request, stored in `comments`.
// PartsOrdered is free text; its length is used as a rough cost proxy.
type Comment struct {
	ID           int64   `json:"id"`            // comments.id
	RequestID    int64   `json:"request_id"`    // comments.request_id
	CommentText  string  `json:"comment_text"`  // comments.comment_text
	PartsOrdered *string `json:"parts_ordered"` // comments.parts_ordered (nullable)
	AddedDate    string  `json:"added_date"`    // comments.added_date
	Author       string  `json:"author"`        // comments.author
}
