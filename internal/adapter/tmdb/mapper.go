package tmdb

import "github.com/collectarr/collectarr/internal/domain"

// mapMovie normalizes a TMDb movie payload into the domain shape.
func mapMovie(r movieResponse) *domain.Title {
	title := r.Title
	if title == "" {
		title = r.OriginalTitle
	}
	t := &domain.Title{
		ID:          r.ID,
		Title:       title,
		ReleaseDate: r.ReleaseDate,
		Status:      r.Status,
		PosterPath:  r.PosterPath,
	}
	if r.BelongsToCollection != nil {
		t.CollectionID = r.BelongsToCollection.ID
		t.CollectionName = r.BelongsToCollection.Name
	}
	return t
}

// mapCollection normalizes a TMDb collection payload. Members without an id
// are dropped.
func mapCollection(r collectionResponse) *domain.Collection {
	c := &domain.Collection{
		ID:         r.ID,
		Name:       r.Name,
		PosterPath: r.PosterPath,
		Parts:      make([]domain.CollectionMember, 0, len(r.Parts)),
	}
	for _, p := range r.Parts {
		if p.ID == 0 {
			continue
		}
		title := p.Title
		if title == "" {
			title = p.OriginalTitle
		}
		c.Parts = append(c.Parts, domain.CollectionMember{
			ID:          p.ID,
			Title:       title,
			ReleaseDate: p.ReleaseDate,
		})
	}
	return c
}
