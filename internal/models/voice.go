package models

type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// VoiceCatalog maps a provider name to its voices.
type VoiceCatalog map[string][]Voice
