package http

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/trigger"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/jwt"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

const (
	triggerLimitMax    = 10
	triggerLimitWindow = time.Minute
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	// BaseContext contexto de las corridas disparadas por HTTP; se cancela al apagar el proceso.
	BaseContext context.Context
	Runner      Runner
	NewRunToken func() string
	Alerts      repository.AlertRepository
	Findings    repository.FindingRepository
	PDF         ports.AlertReportRenderer
	Gate        *trigger.Gate // nil si el gate reactivo está deshabilitado
	JWTSecret   string
	Service     string
	Log         *logger.Logger
}

// NewApp crea la app Fiber con recover, X-Request-ID, CORS y, si existe el archivo, Swagger UI en /docs.
// corsOrigins es una lista separada por comas; vacío = "*".
func NewApp(name, swaggerPath, corsOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(corsOrigins),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders: "Content-Length, Content-Disposition, X-Request-ID",
		MaxAge:        24 * 60 * 60,
	}))

	if swaggerPath != "" {
		if _, err := os.Stat(swaggerPath); err == nil {
			app.Use(swagger.New(swagger.Config{
				BasePath: "/",
				FilePath: swaggerPath,
				Path:     "docs",
				Title:    "Pharma Sentinel API",
			}))
		}
	}
	return app
}

func normalizeOrigins(raw string) string {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(raw) == "*" {
		return "*"
	}
	parts := strings.Split(raw, ",")
	for i, o := range parts {
		parts[i] = strings.TrimSpace(o)
	}
	return strings.Join(parts, ",")
}

// Router registra las rutas de la API. Devuelve el handler de corridas para esperar
// las disparadas manualmente al apagar.
func Router(app *fiber.App, deps RouterDeps) *RunHandler {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.Service})
	})

	api := app.Group("/api")
	runHandler := NewRunHandler(deps)

	// Lectura: cualquier rol autenticado
	reader := api.Group("/", AuthMiddleware(deps.JWTSecret))
	reader.Get("/runs/last", runHandler.Last)
	reader.Get("/runs/:token/alerts", runHandler.Alerts)
	reader.Get("/runs/:token/alerts/pdf", runHandler.AlertsPDF)
	reader.Get("/runs/:token/findings", runHandler.Findings)
	reader.Get("/trigger/stats", func(c *fiber.Ctx) error {
		if deps.Gate == nil {
			return c.JSON(fiber.Map{"enabled": false})
		}
		return c.JSON(fiber.Map{"enabled": true, "listening": deps.Gate.Listening(), "stats": deps.Gate.Stats()})
	})

	// Disparadores manuales: admin o farmacéutico. El rol se exige por ruta para no
	// bloquear las lecturas que comparten el prefijo /runs.
	operator := RequireRole(jwt.RoleAdmin, jwt.RolePharmacist)
	throttle := limiter.New(limiter.Config{
		Max:        triggerLimitMax,
		Expiration: triggerLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "demasiadas corridas manuales, intente más tarde",
			})
		},
	})
	reader.Post("/runs", operator, throttle, runHandler.TriggerFull)
	reader.Post("/runs/quick", operator, throttle, runHandler.TriggerQuick)
	return runHandler
}
