package domain

// Flow is one externally-sourced keyword -> scripted-answer rule.
// The flow sheet is re-fetched lazily; each snapshot is authoritative
// for the message being handled.
type Flow struct {
	Keyword string `json:"keyword"`
	Answer  string `json:"answer"`
	Media   string `json:"media,omitempty"`
}

// HasMedia returns true if the flow carries an attachment URL.
func (f Flow) HasMedia() bool {
	return f.Media != ""
}
