package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/weather"
)

const endpointSuggest = "suggest"

// GeobytesClient implements weather.Suggester with the Geobytes
// AutoCompleteCity endpoint.
type GeobytesClient struct {
	baseURL string
	client  HTTPClient
	metrics *metrics.Collector
}

var _ weather.Suggester = (*GeobytesClient)(nil)

func NewGeobytesClient(client HTTPClient, baseURL string, m *metrics.Collector) *GeobytesClient {
	return &GeobytesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		metrics: m,
	}
}

// Suggest returns completions such as "Toronto, ON, Canada". An empty query
// returns no suggestions without calling the provider.
func (g *GeobytesClient) Suggest(ctx context.Context, query string) (suggestions []string, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}

	start := time.Now()
	defer func() { observe(g.metrics, endpointSuggest, start, err) }()

	values := url.Values{}
	values.Set("q", query)
	u, err := buildURL(g.baseURL, "/AutoCompleteCity?"+values.Encode())
	if err != nil {
		return nil, err
	}

	body, err := doRequest(ctx, g.client, nil, u, nil)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrDecode, err)
	}

	// Geobytes answers [""] when nothing matches.
	suggestions = make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, nil
}
