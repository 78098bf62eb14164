package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fundwit/go-commons/types"
)

type User struct {
	ID     types.ID `json:"id" gorm:"primary_key"`
	Name   string   `json:"name"`
	Secret string   `json:"secret"`

	Nickname string   `json:"nickname"`
	TenantID types.ID `json:"tenantId"`
}

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
