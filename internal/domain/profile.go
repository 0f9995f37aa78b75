package domain

// BusinessProfile is derived from the transcript and never authoritative:
// it is recomputed from the conversation on every update and only cached for
// the suggestion engine.
type BusinessProfile struct {
	Industry  string `json:"industry,omitempty"`
	Materials string `json:"materials,omitempty"`
	Location  string `json:"location,omitempty"`
	Goal      string `json:"goal,omitempty"`
}

// Empty reports whether no field was extracted.
func (p BusinessProfile) Empty() bool {
	return p.Industry == "" && p.Materials == "" && p.Location == "" && p.Goal == ""
}
