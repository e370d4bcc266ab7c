package batch

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy pulls a tracking id out of one response shape.
type Strategy struct {
	Name    string
	Extract func(resp map[string]any) (string, bool)
}

var alternateIDKeys = []string{"async_batch_request_id", "batch_id", "request_id", "handle"}

// TrackingIDStrategies are tried in order by ExtractTrackingID.
var TrackingIDStrategies = []Strategy{
	{Name: "direct_id", Extract: directID},
	{Name: "alternate_key", Extract: alternateKey},
	{Name: "nested_data", Extract: nestedData},
	{Name: "nested_object", Extract: nestedObject},
}

// ExtractTrackingID returns the async batch id from a submission response.
// The last-resort lookup of pending requests needs the network and lives with the caller.
func ExtractTrackingID(resp map[string]any) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, s := range TrackingIDStrategies {
		if id, ok := s.Extract(resp); ok {
			return id, true
		}
	}
	return "", false
}

func directID(resp map[string]any) (string, bool) {
	return idValue(resp["id"])
}

func alternateKey(resp map[string]any) (string, bool) {
	for _, key := range alternateIDKeys {
		if id, ok := idValue(resp[key]); ok {
			return id, true
		}
	}
	return "", false
}

func nestedData(resp map[string]any) (string, bool) {
	data, ok := resp["data"].([]any)
	if !ok || len(data) == 0 {
		return "", false
	}
	first, ok := data[0].(map[string]any)
	if !ok {
		return "", false
	}
	return idValue(first["id"])
}

func nestedObject(resp map[string]any) (string, bool) {
	for _, key := range []string{"async_batch_request", "result"} {
		obj, ok := resp[key].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := idValue(obj["id"]); ok {
			return id, true
		}
	}
	return "", false
}

// FindPendingByName scans an async_batch_requests listing for a request with the given name.
func FindPendingByName(listing []map[string]any, name string) (string, bool) {
	for _, entry := range listing {
		if n, _ := entry["name"].(string); n == name {
			if id, ok := idValue(entry["id"]); ok {
				return id, true
			}
		}
	}
	return "", false
}

var copiedIDKeys = []string{"copied_adset_id", "copied_campaign_id", "copied_ad_id"}

// CopiedObjectID extracts the id of the object created by a copy request result.
// result may be the decoded body or the raw JSON string the batch API returns.
func CopiedObjectID(result any) (string, bool) {
	var obj map[string]any
	switch v := result.(type) {
	case map[string]any:
		obj = v
	case string:
		parsed, err := decodeObject(v)
		if err != nil {
			return "", false
		}
		obj = parsed
	default:
		return "", false
	}

	for _, key := range copiedIDKeys {
		if id, ok := idValue(obj[key]); ok {
			return id, true
		}
	}
	if id, ok := idValue(obj["id"]); ok {
		return id, true
	}
	// {"ad_object_ids":[{"ad_object_type":"adset","source_id":"..","copied_id":".."}]}
	if ids, ok := obj["ad_object_ids"].([]any); ok && len(ids) > 0 {
		if first, ok := ids[0].(map[string]any); ok {
			return idValue(first["copied_id"])
		}
	}
	return "", false
}

func idValue(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if id <= 0 {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(id, 10), id > 0
	case int:
		return strconv.Itoa(id), id > 0
	case fmt.Stringer:
		s := strings.TrimSpace(id.String())
		return s, s != "" && s != "0"
	}
	return "", false
}
