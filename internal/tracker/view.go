package tracker

import "betledger/internal/ledger"

// Mode is what tapping a bet does
type Mode int

const (
	// ModeBrowsing: tapping does nothing
	ModeBrowsing Mode = iota
	// ModeConfirmingDelete: tapping a bet deletes it
	ModeConfirmingDelete
	// ModeSelectingForEdit: tapping a bet loads it into the form
	ModeSelectingForEdit
)

func (m Mode) String() string {
	switch m {
	case ModeConfirmingDelete:
		return "confirming_delete"
	case ModeSelectingForEdit:
		return "selecting_for_edit"
	default:
		return "browsing"
	}
}

// View is the presentation state of one client
type View struct {
	Filter    ledger.Filter `json:"filter"`
	Mode      Mode          `json:"-"`
	FormOpen  bool          `json:"form_open"`
	EditingID string        `json:"editing_id,omitempty"`
}

func newView() *View {
	return &View{Filter: ledger.FilterAll}
}

// toggle switches to m, or back to browsing if m is already active
func (v *View) toggle(m Mode) Mode {
	if v.Mode == m {
		v.Mode = ModeBrowsing
	} else {
		v.Mode = m
	}
	return v.Mode
}

func (v *View) closeForm() {
	v.FormOpen = false
	v.EditingID = ""
}

// SelectAction tells what SelectBet did
type SelectAction int

const (
	SelectNone SelectAction = iota
	SelectDeleted
	SelectEditing
)
