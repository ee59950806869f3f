package llm

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// parseArguments decodes tool-call arguments. Models occasionally emit
// truncated or single-quoted JSON, so a failed decode gets one repair pass.
// Unrecoverable input yields an empty map.
func parseArguments(raw string) map[string]any {
	params := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return params
	}
	if err := json.Unmarshal([]byte(raw), &params); err == nil {
		return params
	}

	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		log.Printf("llm: tool arguments not repairable: %v", err)
		return map[string]any{}
	}
	params = map[string]any{}
	if err := json.Unmarshal([]byte(fixed), &params); err != nil {
		log.Printf("llm: repaired tool arguments still invalid: %v", err)
		return map[string]any{}
	}
	return params
}

// encodeArguments renders tool-call params as sent to the provider.
func encodeArguments(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(b)
}
