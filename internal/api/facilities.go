package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/ava/internal/facility"
)

type facilitiesResponse struct {
	Facilities []facility.Record `json:"facilities"`
}

// searchFacilities handles GET /facilities.
func (s *Server) searchFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	location := strings.TrimSpace(q.Get("location"))
	if location == "" {
		writeError(w, http.StatusBadRequest, "Location is required.")
		return
	}

	filters := facility.Filters{
		PetFriendly:  flag(q.Get("pet_friendly")),
		SocialActive: flag(q.Get("social_active")),
		QuietPrivate: flag(q.Get("quiet_private")),
		Religious:    flag(q.Get("religious")),
	}

	records, err := s.facilities.Search(r.Context(), location, filters)
	if err != nil {
		s.logger.Error("facility search failed", "location", location, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching facilities.")
		return
	}
	if records == nil {
		records = []facility.Record{}
	}

	writeJSON(w, http.StatusOK, facilitiesResponse{Facilities: records})
}

// flag reads a boolean query value. "on" and "yes" count as true; anything
// unparsable is false.
func flag(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "on", "yes":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
