package domain

import "fmt"

// Identity is the team member a message is attributed to (value object)
type Identity struct {
	MemberID    string `json:"member_id" validate:"required"`
	DisplayName string `json:"display_name"`
}

// FormatDisplay formats for display
func (i *Identity) FormatDisplay() string {
	if i.DisplayName == "" {
		return i.MemberID
	}
	return fmt.Sprintf("%s (member_id: %s)", i.DisplayName, i.MemberID)
}
