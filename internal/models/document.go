package models

// DocumentRef points at content held by the external file store. It never
// carries the bytes themselves. Context is an optional plain-text snippet
// extracted during ingestion.
type DocumentRef struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	URI      string `json:"uri"`
	Context  string `json:"context,omitempty"`
}
