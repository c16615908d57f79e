package dto

import "time"

// RegistryRecord registro crudo del registro oficial de desabastecimiento.
type RegistryRecord struct {
	GenericName        string `json:"generic_name"`
	Status             string `json:"status"`
	ShortageReason     string `json:"shortage_reason"`
	Presentation       string `json:"presentation"`
	UpdateDate         string `json:"update_date"`
	InitialPostingDate string `json:"initial_posting_date"`
}

// NewsQuery consulta a la fuente de noticias.
type NewsQuery struct {
	Query    string
	From     time.Time
	PageSize int
}

// NewsArticle artículo crudo devuelto por la fuente de noticias.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
