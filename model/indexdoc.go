package model

// IndexDoc is the derived, full-text-searchable projection of a Record.
// It exists in the index iff the corresponding Record has a non-nil
// info dict.
type IndexDoc struct {
	InfoHash       string   `json:"info_hash"` // hex, stored+indexed exact
	Title          string   `json:"title"`     // tokenized, stored
	FileNames      []string `json:"-"`         // tokenized, not stored
	Seeders        int32    `json:"seeders"`         // fast numeric, for sort
	LastSeenMillis int64    `json:"last_seen_millis"` // feeds the search freshness factor
}

// NewIndexDoc projects a Record into its IndexDoc form. Callers must only
// call this for records that HasMetadata().
func NewIndexDoc(r *Record) IndexDoc {
	doc := IndexDoc{
		InfoHash:       r.InfoHash.String(),
		Seeders:        r.Seeders,
		LastSeenMillis: r.LastSeenMillis,
	}
	if r.Title != nil {
		doc.Title = *r.Title
	}
	doc.FileNames = make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		doc.FileNames = append(doc.FileNames, f.Name)
	}
	return doc
}
