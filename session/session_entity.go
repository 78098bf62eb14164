package session

import (
	"context"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

// Session carries the pre-resolved tenant and actor of one request.
// The engine itself performs no authentication beyond trusting these values.
type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
	TenantID types.ID `json:"tenantId"`
	Perms    []string `json:"perms"`

	SigningTime time.Time `json:"-"`

	Context context.Context `json:"-"`
}

func (s *Session) Clone() Session {
	c := *s
	c.Perms = append([]string{}, s.Perms...)
	return c
}

func (s *Session) HasRole(role string) bool {
	for _, p := range s.Perms {
		if p == role {
			return true
		}
	}
	return false
}
