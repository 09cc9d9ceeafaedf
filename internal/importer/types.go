// Package importer drives dependency-ordered, idempotent import of a
// photo collection: every album's destination folder is created before
// any photo upload begins, and both steps are keyed so job retries never
// duplicate work.
package importer

// Album is a source-side photo grouping, mapped 1:1 to a destination
// folder whose id is cached for the lifetime of the job.
type Album struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Photo is one source item to upload. Exactly one of StagedKey or
// FetchableURL identifies its content; a photo with neither is a data
// error. An empty AlbumID sends the photo to the default Pictures path.
type Photo struct {
	ID           string `json:"id"`
	AlbumID      string `json:"album_id,omitempty"`
	Title        string `json:"title"`
	MediaType    string `json:"media_type"`
	StagedKey    string `json:"staged_key,omitempty"`
	FetchableURL string `json:"fetchable_url,omitempty"`
}

// Collection is one import job's input.
type Collection struct {
	JobID  string  `json:"job_id"`
	Albums []Album `json:"albums"`
	Photos []Photo `json:"photos"`
}

// photoKey builds the idempotency key for a photo's upload step. The
// album id is part of the key so the same source photo referenced from
// two albums imports into both.
func photoKey(p Photo) string {
	return p.AlbumID + "-" + p.ID
}
