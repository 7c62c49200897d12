package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const omdbBaseURL = "https://www.omdbapi.com"

// Movie is the subset of an OMDb record the bot renders.
type Movie struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Rating     string `json:"imdbRating"`
	Votes      string `json:"imdbVotes"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Awards     string `json:"Awards"`
	Language   string `json:"Language"`
	Country    string `json:"Country"`
	Poster     string `json:"Poster"`
	Response   string `json:"Response"`
	ErrMessage string `json:"Error"`
}

// Format renders the movie as a chat reply.
func (m Movie) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 %s (%s)\n\n", m.Title, m.Year)
	fmt.Fprintf(&b, "⭐ Rating: %s/10 (%s votes)\n", m.Rating, m.Votes)
	fmt.Fprintf(&b, "⏱️ Runtime: %s\n", m.Runtime)
	fmt.Fprintf(&b, "🎭 Genre: %s\n", m.Genre)
	fmt.Fprintf(&b, "🎥 Director: %s\n", m.Director)
	fmt.Fprintf(&b, "👥 Cast: %s\n", m.Actors)
	fmt.Fprintf(&b, "📖 Plot: %s\n", m.Plot)
	fmt.Fprintf(&b, "🏆 Awards: %s\n", m.Awards)
	fmt.Fprintf(&b, "🌍 Language: %s\n", m.Language)
	fmt.Fprintf(&b, "Country: %s", m.Country)
	return b.String()
}

// OMDb looks up movies by title.
type OMDb struct {
	client
	apiKey string
}

// NewOMDb returns a client. baseURL may be empty for the public endpoint.
func NewOMDb(apiKey, baseURL string, httpClient *http.Client) *OMDb {
	if baseURL == "" {
		baseURL = omdbBaseURL
	}
	return &OMDb{client: newClient(baseURL, httpClient), apiKey: apiKey}
}

func (o *OMDb) Movie(ctx context.Context, title string) (Movie, error) {
	if o.apiKey == "" {
		return Movie{}, ErrNotConfigured
	}

	var movie Movie
	query := url.Values{"apikey": {o.apiKey}, "t": {title}, "plot": {"full"}}
	if err := o.getJSON(ctx, "/", query, &movie); err != nil {
		return Movie{}, err
	}
	if movie.Response == "False" {
		return Movie{}, fmt.Errorf("%w: %s", ErrNotFound, movie.ErrMessage)
	}
	return movie, nil
}
