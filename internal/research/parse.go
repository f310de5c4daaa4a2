package research

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// CleanJSON extracts a JSON document from text that may carry markdown code
// fences or surrounding prose. Works for both objects and arrays.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)

	// Clip to the outermost JSON document, object or array, whichever
	// starts first.
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		if end := strings.LastIndex(text, "]"); end > arrStart {
			text = text[arrStart : end+1]
		}
	case objStart >= 0:
		if end := strings.LastIndex(text, "}"); end > objStart {
			text = text[objStart : end+1]
		}
	}
	return strings.TrimSpace(text)
}

// parseSelection parses the page-selection response into URLs, keeping only
// entries that appear in the allowed set.
func parseSelection(text string, allowed map[string]bool) ([]string, error) {
	var items []struct {
		URL    string `json:"url"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(CleanJSON(text)), &items); err != nil {
		return nil, resilience.NewError(resilience.KindInvalidResponse, err)
	}

	var urls []string
	seen := make(map[string]bool)
	for _, it := range items {
		u := strings.TrimSpace(it.URL)
		if u == "" || seen[u] || !allowed[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "research: selection returned no usable urls")
	}
	return urls, nil
}

// parseRecord fills a CompanyRecord from the aggregation response. A field
// that is missing or carries the wrong JSON type stays absent; only a fully
// unparsable document is an error.
func parseRecord(text string, record *model.CompanyRecord) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(CleanJSON(text)), &raw); err != nil {
		return resilience.NewError(resilience.KindInvalidResponse, err)
	}

	for _, f := range model.AllFields() {
		val, ok := raw[string(f)]
		if !ok || val == nil {
			continue
		}
		kind, _ := model.KindOfField(f)
		switch kind {
		case model.KindText:
			if s, ok := toText(val); ok {
				record.SetText(f, s)
			}
		case model.KindList:
			if list, ok := toStringList(val); ok {
				record.SetList(f, list)
			}
		case model.KindPeople:
			if people, ok := toPeople(val); ok {
				record.SetPeople(f, people)
			}
		case model.KindBool:
			if b, ok := val.(bool); ok {
				record.SetBool(f, b)
			}
		case model.KindScore:
			if n, ok := val.(float64); ok {
				record.SetScore(f, n)
			}
		}
		if !record.Present(f) {
			zap.L().Debug("aggregation field ill-typed, left unknown",
				zap.String("field", string(f)))
		}
	}
	return nil
}

func toText(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case float64:
		// Models sometimes emit founding_year as a number.
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toStringList(val any) ([]string, bool) {
	arr, ok := val.([]any)
	if !ok {
		return nil, false
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out, len(out) > 0
}

func toPeople(val any) ([]model.Person, bool) {
	arr, ok := val.([]any)
	if !ok {
		return nil, false
	}
	var out []model.Person
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		role, _ := m["role"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, model.Person{Name: name, Role: strings.TrimSpace(role)})
	}
	return out, len(out) > 0
}
