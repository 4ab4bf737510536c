// internal/catalog/elastic.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticLookup searches a catalog index whose documents carry a
// lookup_keys keyword field plus the Entry fields.
type ElasticLookup struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticLookup(client *elasticsearch.Client, index string) *ElasticLookup {
	return &ElasticLookup{client: client, index: index}
}

type catalogDocument struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Unit            string  `json:"unit"`
	UnitTimeMinutes float64 `json:"unit_time_minutes"`
	UnitCost        float64 `json:"unit_cost"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source catalogDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildCatalogQuery(key string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"lookup_keys": key}},
					map[string]interface{}{"term": map[string]interface{}{"is_active": true}},
				},
			},
		},
		"sort": []map[string]interface{}{
			{"priority": map[string]interface{}{"order": "desc", "unmapped_type": "integer"}},
			{"code": map[string]interface{}{"order": "asc", "unmapped_type": "keyword"}},
		},
	}
}

func (l *ElasticLookup) Lookup(ctx context.Context, key string) ([]Entry, error) {
	body, err := json.Marshal(buildCatalogQuery(key))
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrLookupFailed, err)
	}

	size := maxEntriesPerKey
	req := esapi.SearchRequest{
		Index: []string{l.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", ErrLookupFailed, key, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: index %s not found", ErrLookupFailed, l.index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: search %s: %s", ErrLookupFailed, key, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLookupFailed, err)
	}

	out := make([]Entry, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		d := h.Source
		out = append(out, Entry{
			Code:            d.Code,
			Name:            d.Name,
			Category:        d.Category,
			Unit:            d.Unit,
			UnitTimeMinutes: d.UnitTimeMinutes,
			UnitCost:        d.UnitCost,
		})
	}
	return out, nil
}
