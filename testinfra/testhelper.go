package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"conveyor/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BuildSession builds an authenticated session for tests.
func BuildSession(uid types.ID, tenantID types.ID, perms ...string) *session.Session {
	return &session.Session{
		Token:    uuid.New().String(),
		Identity: session.Identity{ID: uid, Name: "user-" + uid.String()},
		TenantID: tenantID,
		Perms:    perms,
		Context:  context.Background(),
	}
}

// ExecuteRequest drives a gin engine with an in-memory request and returns
// the status code and response body.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, string(bodyBytes), resp
}

// SessionFilter injects a fixed session, standing in for the cookie based
// auth filter in handler tests.
func SessionFilter(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, s)
		c.Next()
	}
}
