package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RolePhysician    Role = "physician"
	RoleTechnologist Role = "technologist"
)

// User is the canonical identity returned by the identity check endpoint.
// Unknown roles are carried through unchanged.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UnmarshalJSON accepts the id as a string or as an integer primary key.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id := bytes.TrimSpace(aux.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		u.ID = ""
	case id[0] == '"':
		if err := json.Unmarshal(id, &u.ID); err != nil {
			return err
		}
	default:
		var number json.Number
		if err := json.Unmarshal(id, &number); err != nil {
			return fmt.Errorf("invalid user id %s: %w", id, err)
		}
		u.ID = number.String()
	}
	return nil
}

func (u *User) GetName() string {
	if len(u.Name) > 0 {
		return u.Name
	} else if len(u.FirstName) > 0 || len(u.LastName) > 0 {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	} else if len(u.Email) > 0 {
		return u.Email
	}
	return "Unknown"
}

func (u *User) GetIdentity() string {
	if len(u.Email) > 0 {
		return u.Email
	} else if len(u.ID) > 0 {
		return u.ID
	}
	return strings.ToLower(strings.ReplaceAll(u.GetName(), " ", "_"))
}

func (u *User) IsKnownRole() bool {
	switch u.Role {
	case RoleAdmin, RolePhysician, RoleTechnologist:
		return true
	}
	return false
}
