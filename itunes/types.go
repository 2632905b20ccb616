package itunes

// SearchResponse is the body returned by the iTunes Search API.
type SearchResponse struct {
	ResultCount int     `json:"resultCount"`
	Results     []Track `json:"results"`
}

// Track is one provider-native result with entity=song.
type Track struct {
	WrapperType       string  `json:"wrapperType"`
	Kind              string  `json:"kind"`
	TrackID           int64   `json:"trackId"`
	ArtistID          int64   `json:"artistId"`
	CollectionID      int64   `json:"collectionId"`
	TrackName         string  `json:"trackName"`
	ArtistName        string  `json:"artistName"`
	CollectionName    string  `json:"collectionName"`
	TrackTimeMillis   int64   `json:"trackTimeMillis"`
	PreviewURL        string  `json:"previewUrl"`
	ArtworkURL60      string  `json:"artworkUrl60"`
	ArtworkURL100     string  `json:"artworkUrl100"`
	PrimaryGenreName  string  `json:"primaryGenreName"`
	ReleaseDate       string  `json:"releaseDate"`
	TrackExplicitness string  `json:"trackExplicitness"`
	TrackNumber       int     `json:"trackNumber"`
	Country           string  `json:"country"`
	TrackPrice        float64 `json:"trackPrice"`
}
