package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const jikanBaseURL = "https://api.jikan.moe/v4"

type named struct {
	Name string `json:"name"`
}

// Anime is the subset of a Jikan record the bot renders.
type Anime struct {
	Title         string  `json:"title"`
	TitleJapanese string  `json:"title_japanese"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
	Episodes      int     `json:"episodes"`
	Status        string  `json:"status"`
	Synopsis      string  `json:"synopsis"`
	Aired         struct {
		String string `json:"string"`
	} `json:"aired"`
	Genres  []named `json:"genres"`
	Studios []named `json:"studios"`
}

const synopsisLimit = 300

func joinNames(items []named) string {
	if len(items) == 0 {
		return "Unknown"
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

func orUnknown[T comparable](v T) string {
	var zero T
	if v == zero {
		return "Unknown"
	}
	return fmt.Sprint(v)
}

// Format renders the anime as a chat reply.
func (a Anime) Format() string {
	synopsis := []rune(a.Synopsis)
	text := string(synopsis)
	if len(synopsis) > synopsisLimit {
		text = string(synopsis[:synopsisLimit]) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎌 %s (%s)\n\n", a.Title, a.TitleJapanese)
	fmt.Fprintf(&b, "⭐ Rating: %s/10\n", orUnknown(a.Score))
	fmt.Fprintf(&b, "📊 Rank: #%s\n", orUnknown(a.Rank))
	fmt.Fprintf(&b, "🎞️ Episodes: %s\n", orUnknown(a.Episodes))
	fmt.Fprintf(&b, "📺 Status: %s\n", orUnknown(a.Status))
	fmt.Fprintf(&b, "📅 Aired: %s\n", orUnknown(a.Aired.String))
	fmt.Fprintf(&b, "🎭 Genre: %s\n", joinNames(a.Genres))
	fmt.Fprintf(&b, "🏢 Studio: %s\n", joinNames(a.Studios))
	fmt.Fprintf(&b, "📖 Synopsis: %s", text)
	return b.String()
}

// Jikan searches MyAnimeList through the Jikan API.
type Jikan struct {
	client
}

// NewJikan returns a client. baseURL may be empty for the public endpoint.
func NewJikan(baseURL string, httpClient *http.Client) *Jikan {
	if baseURL == "" {
		baseURL = jikanBaseURL
	}
	return &Jikan{client: newClient(baseURL, httpClient)}
}

func (j *Jikan) Anime(ctx context.Context, title string) (Anime, error) {
	var resp struct {
		Data []Anime `json:"data"`
	}
	if err := j.getJSON(ctx, "/anime", url.Values{"q": {title}, "limit": {"1"}}, &resp); err != nil {
		return Anime{}, err
	}
	if len(resp.Data) == 0 {
		return Anime{}, ErrNotFound
	}
	return resp.Data[0], nil
}
