package middleware

import (
	"schoolportal/internal/entity"
	"schoolportal/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const contextTokenKey = "auth_token_claims"

func SetAuthContext(c echo.Context, token *utils.Token) {
	c.Set(contextTokenKey, token)
}

func TokenFromContext(c echo.Context) (*utils.Token, bool) {
	token, ok := c.Get(contextTokenKey).(*utils.Token)
	return token, ok && token != nil
}

func RoleFromContext(c echo.Context) (string, bool) {
	token, ok := TokenFromContext(c)
	if !ok {
		return "", false
	}
	return token.Role, true
}

// OwnerFromContext returns the authenticated principal as an owner reference.
func OwnerFromContext(c echo.Context) (*entity.OwnerRef, bool) {
	token, ok := TokenFromContext(c)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(token.EntityID)
	if err != nil {
		return nil, false
	}
	kind := entity.OwnerAdmin
	if token.Role == entity.SchoolRole {
		kind = entity.OwnerSchool
	}
	return &entity.OwnerRef{ID: id, Kind: kind}, true
}
