package concord

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON writes body with the given status. The body of a successful
// call is the bare return value, so a void method answers with null.
func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Response may be partially written, nothing we can do.
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
