package share

import (
	"encoding/json"
	"sort"
	"strings"
)

const consumedStatus = "consumed"

// Fields stripped from every publicly shared record regardless of settings.
var alwaysStripped = []string{"consumptionHistory", "editHistory"}

// Fields stripped unless the owner opted into showing monetary values.
var valueFields = []string{"marketValue", "price"}

// RedactRecord returns a copy of the payload safe for public exposure.
// Consumption and edit history never leave the server; monetary fields are
// stripped unless showValues is set; inline data-URI images are dropped
// while URL-referenced images are kept. Unknown fields pass through.
func RedactRecord(payload map[string]any, showValues bool) map[string]any {
	redacted := make(map[string]any, len(payload))
	for key, value := range payload {
		if text, ok := value.(string); ok && strings.HasPrefix(text, "data:") {
			continue
		}
		redacted[key] = value
	}
	for _, field := range alwaysStripped {
		delete(redacted, field)
	}
	if !showValues {
		for _, field := range valueFields {
			delete(redacted, field)
		}
	}
	return redacted
}

// IsConsumed reports whether a record is excluded from the share view.
func IsConsumed(payload map[string]any) bool {
	status, ok := payload["status"].(string)
	return ok && strings.EqualFold(strings.TrimSpace(status), consumedStatus)
}

// TypeCount aggregates bottles per payload "type".
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// View is the deterministic public projection of one user's cellar. The
// JSON API and the rendered HTML page are both computed from it.
type View struct {
	OwnerName      string           `json:"ownerName"`
	ShowValues     bool             `json:"showValues"`
	Bottles        []map[string]any `json:"bottles"`
	BottleCount    int              `json:"bottleCount"`
	TypeCounts     []TypeCount      `json:"typeCounts"`
	EstimatedValue float64          `json:"estimatedValue,omitempty"`
}

// BuildView filters consumed bottles, redacts the survivors, and computes
// the aggregates shown on the share page.
func BuildView(ownerName string, payloads []json.RawMessage, showValues bool) View {
	view := View{
		OwnerName:  ownerName,
		ShowValues: showValues,
		Bottles:    make([]map[string]any, 0, len(payloads)),
	}

	countsByType := make(map[string]int)
	for _, raw := range payloads {
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
			continue
		}
		if IsConsumed(payload) {
			continue
		}

		if showValues {
			if value, ok := payload["marketValue"].(float64); ok {
				view.EstimatedValue += value
			}
		}
		if bottleType, ok := payload["type"].(string); ok && strings.TrimSpace(bottleType) != "" {
			countsByType[strings.TrimSpace(bottleType)]++
		}

		view.Bottles = append(view.Bottles, RedactRecord(payload, showValues))
	}

	view.BottleCount = len(view.Bottles)
	view.TypeCounts = sortedTypeCounts(countsByType)
	if !showValues {
		view.EstimatedValue = 0
	}
	return view
}

func sortedTypeCounts(countsByType map[string]int) []TypeCount {
	counts := make([]TypeCount, 0, len(countsByType))
	for name, count := range countsByType {
		counts = append(counts, TypeCount{Type: name, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Type < counts[j].Type
	})
	return counts
}
