package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"schoolportal/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	AuthCookieName    = "auth_token"
	RefreshCookieName = "refresh_token"
	defaultLoginPath  = "/login"
)

// Orchestrator gates every request by path class before any handler runs. Private and
// unregistered paths require a valid auth token; public and auth-flow paths pass through.
type Orchestrator struct {
	routes     RouteTable
	tokens     *utils.TokenManager
	logger     logrus.FieldLogger
	cookieName string
	loginPath  string
}

func NewOrchestrator(routes RouteTable, tokens *utils.TokenManager, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		routes:     routes,
		tokens:     tokens,
		logger:     logger,
		cookieName: AuthCookieName,
		loginPath:  defaultLoginPath,
	}
}

func (o *Orchestrator) Classify(path string) PathClass {
	return o.routes.Classify(path)
}

func (o *Orchestrator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if o.routes.IsExcluded(path) {
				return next(c)
			}

			switch o.Classify(path) {
			case PathPublic, PathAuthFlow:
				return next(c)
			}

			raw, ok := o.sessionToken(c)
			if !ok {
				return o.deny(c, "missing session token", nil)
			}
			token, err := o.tokens.Verify(raw, utils.TokenAuth)
			if err != nil {
				return o.deny(c, "invalid session token", err)
			}
			SetAuthContext(c, token)
			return next(c)
		}
	}
}

// sessionToken prefers the Authorization header and falls back to the auth cookie.
func (o *Orchestrator) sessionToken(c echo.Context) (string, bool) {
	if token, ok := utils.ExtractFromHeader(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
		return token, true
	}
	cookie, err := c.Cookie(o.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

func (o *Orchestrator) deny(c echo.Context, reason string, err error) error {
	entry := o.logger.WithFields(logrus.Fields{
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
		"ip":     c.RealIP(),
		"reason": reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("request denied")

	if isAPIRequest(c.Request()) {
		return c.JSON(http.StatusUnauthorized, errorBody("Authentication required"))
	}
	target := o.loginPath + "?redirect=" + url.QueryEscape(c.Request().URL.RequestURI())
	return c.Redirect(http.StatusFound, target)
}

// isAPIRequest decides between a JSON 401 and a login redirect. Requests that cannot
// follow a redirect meaningfully (non-GET) are treated as API calls.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return true
	}
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}
