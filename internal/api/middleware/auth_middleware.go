package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/tattle-publisher/configs"
	"github.com/maheshrc27/tattle-publisher/pkg/utils"
)

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// AdminAuth accepts an admin JWT from the Authorization header or the session cookie.
func (m *AuthMiddleware) AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		fromCookie := false
		if tokenString == "" {
			tokenString = c.Cookies(m.cfg.CookieName)
			fromCookie = true
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := utils.ValidateAdminToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			if fromCookie {
				c.Cookie(&fiber.Cookie{
					Name:   m.cfg.CookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1, // Delete cookie
				})
			}

			slog.Info("admin token validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("admin", claims.Subject)
		return c.Next()
	}
}

// SchedulerAuth guards the trigger endpoint with the shared scheduler secret.
func (m *AuthMiddleware) SchedulerAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.cfg.SchedulerSecret == "" {
			slog.Error("SCHEDULER_SECRET not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Scheduler not configured",
			})
		}

		token := bearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.cfg.SchedulerSecret)) != 1 {
			slog.Warn("unauthorized scheduler request", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
