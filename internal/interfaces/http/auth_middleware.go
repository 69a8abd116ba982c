package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/pkg/jwt"
)

// Locals keys para UserID y EmpresaID en Fiber.
const (
	LocalUserID    = "user_id"
	LocalEmpresaID = "empresa_id"
)

// AuthMiddleware valida el Bearer Token JWT y extrae UserID y EmpresaID a c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		userID, empresaID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalEmpresaID, empresaID)
		return c.Next()
	}
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string {
	v := c.Locals(LocalUserID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetEmpresaID devuelve el EmpresaID del contexto (después del middleware de auth).
func GetEmpresaID(c *fiber.Ctx) string {
	v := c.Locals(LocalEmpresaID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// empresaParam valida que el :empresaID de la ruta coincida con el del token.
// Si no, escribe la respuesta de error y devuelve ok = false.
func empresaParam(c *fiber.Ctx) (string, bool) {
	empresaID := c.Params("empresaID")
	if empresaID == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "empresaID requerido"})
		return "", false
	}
	if claim := GetEmpresaID(c); claim != "" && claim != empresaID {
		_ = c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el token no autoriza esta empresa"})
		return "", false
	}
	return empresaID, true
}
