package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxi/internal/domain"
)

const identityKey = "identity"

// Authenticator resolves the identity behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Identity, error)
}

// Authentication stores the request identity in the gin context. Requests
// without a valid token continue as anonymous.
func Authentication(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authn.Authenticate(c.Request)
		if err != nil && c.GetHeader("Authorization") != "" {
			log.Printf("[AUTH] rejected token: path=%s err=%v", c.Request.URL.Path, err)
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authentication, or an
// anonymous identity if there is none.
func IdentityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.AnonymousIdentity()
}

// RequireIdentity aborts anonymous requests with 401.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c).Anonymous {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
