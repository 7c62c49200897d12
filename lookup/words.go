package lookup

import (
	"context"
	"net/http"
	"net/url"
)

const randomWordBaseURL = "https://random-word-api.vercel.app"

// RandomWords fetches a single random English word per call.
type RandomWords struct {
	client
}

// NewRandomWords returns a client. baseURL may be empty for the public endpoint.
func NewRandomWords(baseURL string, httpClient *http.Client) *RandomWords {
	if baseURL == "" {
		baseURL = randomWordBaseURL
	}
	return &RandomWords{client: newClient(baseURL, httpClient)}
}

// Word implements game.WordSource.
func (r *RandomWords) Word(ctx context.Context) (string, error) {
	var words []string
	if err := r.getJSON(ctx, "/api", url.Values{"words": {"1"}}, &words); err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", ErrNotFound
	}
	return words[0], nil
}
