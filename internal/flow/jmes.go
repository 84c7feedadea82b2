package flow

import (
	"fmt"

	"pinrelay/internal/types"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// FilterClients returns the views of clients for which expression evaluates to boolean true.
// An empty expression keeps every client. Each view is matched in its JSON shape, so
// expressions use the JSON field names (e.g. "phone != null", "country == 'SA'").
func FilterClients(expression string, clients map[string]types.Client) (map[string]types.ClientView, error) {
	views := make(map[string]types.ClientView, len(clients))
	if expression == "" {
		for k, c := range clients {
			views[k] = c.View()
		}
		return views, nil
	}
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	for k, c := range clients {
		view := c.View()
		doc, err := asDocument(view)
		if err != nil {
			return nil, err
		}
		v, err := jp.Search(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		if match, _ := v.(bool); match {
			views[k] = view
		}
	}
	return views, nil
}

func asDocument(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
