package guruhealserver

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

func RespondWithJSON(statusCode int, w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("could not write json response")
	}
}

func failureResponse(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(statusCode, w, map[string]interface{}{
		"code":    statusCode,
		"message": message,
	})
}

// storeErrorStatus maps store errors onto HTTP status codes.
func storeErrorStatus(err error) int {
	if errors.Is(err, chat.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
