package calendar

// Entry is a calendar the client can select. Id is the composite selector sent back in
// the calendarIds parameter of the events endpoint.
type Entry struct {
	Id              string `json:"id"`
	Summary         string `json:"summary"`
	Primary         bool   `json:"primary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	AccountEmail    string `json:"accountEmail"`
}
