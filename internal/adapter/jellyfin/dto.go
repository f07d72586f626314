package jellyfin

// userResponse represents a Jellyfin user account.
type userResponse struct {
	ID         string `json:"Id"`
	Name       string `json:"Name"`
	IsDisabled bool   `json:"IsDisabled"`
	Policy     struct {
		IsDisabled bool `json:"IsDisabled"`
	} `json:"Policy"`
}

// itemsResponse represents a paginated list of items from Jellyfin.
type itemsResponse struct {
	Items            []item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// item represents a Jellyfin library item (movie, box set, etc.).
type item struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Type        string            `json:"Type"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// createResponse represents the body returned by POST /Collections.
type createResponse struct {
	ID string `json:"Id"`
}
