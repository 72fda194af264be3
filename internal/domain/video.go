package domain

// VideoRef is an opaque track identifier plus display metadata. Immutable;
// equality is by id only.
type VideoRef struct {
	ID           string `json:"video_id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail"`
}

func (v VideoRef) Equal(other VideoRef) bool {
	return v.ID == other.ID
}
