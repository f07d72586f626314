package jellyfin

import "github.com/collectarr/collectarr/internal/domain"

// mapUsers converts Jellyfin user accounts to domain users. Jellyfin has
// reported the disabled flag both at the top level and under Policy across
// versions; either marks the user unusable.
func mapUsers(users []userResponse) []domain.User {
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, domain.User{
			ID:       u.ID,
			Name:     u.Name,
			Disabled: u.IsDisabled || u.Policy.IsDisabled,
		})
	}
	return out
}

// mapMovies converts Jellyfin items to domain library items.
func mapMovies(items []item) []domain.LibraryItem {
	out := make([]domain.LibraryItem, 0, len(items))
	for _, it := range items {
		if it.Type != "Movie" {
			continue
		}
		out = append(out, domain.LibraryItem{
			ID:          it.ID,
			Title:       it.Name,
			ProviderIDs: it.ProviderIDs,
		})
	}
	return out
}
