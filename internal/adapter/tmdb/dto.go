package tmdb

// collectionRef is the belongs_to_collection stub embedded in a movie payload.
type collectionRef struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

// movieResponse represents a TMDb /movie/{id} payload, reduced to the fields
// we normalize.
type movieResponse struct {
	ID                  int            `json:"id"`
	Title               string         `json:"title"`
	OriginalTitle       string         `json:"original_title"`
	ReleaseDate         string         `json:"release_date"`
	Status              string         `json:"status"`
	PosterPath          string         `json:"poster_path"`
	BelongsToCollection *collectionRef `json:"belongs_to_collection"`
}

// collectionPart is one member in a TMDb collection payload.
type collectionPart struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

// collectionResponse represents a TMDb /collection/{id} payload.
type collectionResponse struct {
	ID         int              `json:"id"`
	Name       string           `json:"name"`
	PosterPath string           `json:"poster_path"`
	Parts      []collectionPart `json:"parts"`
}
