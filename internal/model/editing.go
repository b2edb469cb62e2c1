package model

type EditingMode int

const (
	EditingIdle EditingMode = iota
	EditingCreating
	EditingEditing
)

func (m EditingMode) String() string {
	switch m {
	case EditingCreating:
		return "creating"
	case EditingEditing:
		return "editing"
	default:
		return "idle"
	}
}

func (m EditingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EditingTarget is the transient state of one authoring interaction.
// Document is set only in EditingEditing mode.
type EditingTarget struct {
	Mode     EditingMode `json:"mode"`
	Document *Document   `json:"document,omitempty"`
}

func (t EditingTarget) Active() bool {
	return t.Mode != EditingIdle
}
