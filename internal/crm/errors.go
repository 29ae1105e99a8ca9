package crm

import (
	"encoding/json"
	"fmt"
	"strings"
)

var statusMessages = map[int]string{
	400: "Bad request. Please check your data.",
	401: "Unauthorized. Please check your API token.",
	403: "Forbidden. You do not have permission to perform this action.",
	404: "Not found. The requested resource does not exist.",
	429: "Rate limit exceeded. Please try again later.",
	500: "Internal server error. Please try again later.",
}

type apiError struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ErrorMessage picks the most specific explanation available: the body's
// top-level message, then the first entry of its error list, then a
// per-status default.
func ErrorMessage(status int, body []byte) string {
	var e apiError
	if len(body) > 0 && json.Unmarshal(body, &e) == nil {
		if m := strings.TrimSpace(e.Message); m != "" {
			return m
		}
		for _, item := range e.Errors {
			if m := strings.TrimSpace(item.Message); m != "" {
				return m
			}
		}
	}
	if m, ok := statusMessages[status]; ok {
		return m
	}
	return fmt.Sprintf("HubSpot API error (HTTP %d). Please try again later.", status)
}
