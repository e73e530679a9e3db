package models

// Post is one ingested social-media text record. Posts are validated upstream
// and consumed exactly once by the pipeline.
type Post struct {
	ID        string `json:"id"`
	Platform  string `json:"platform"`
	Author    string `json:"author"`
	AuthorID  string `json:"author_id,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"` // RFC 3339; empty means "now"
	URL       string `json:"url,omitempty"`
}

// AuthorKey returns the identifier used for the post's User node. Falls back
// to the display name for platforms that do not expose stable author IDs.
func (p Post) AuthorKey() string {
	if p.AuthorID != "" {
		return p.AuthorID
	}
	return p.Author
}
