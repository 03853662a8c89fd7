// Package handlers is the HTTP surface: fiber handlers, the route table and
// the JSON error envelope.
package handlers

import (
	"github.com/arzan03/cloudvault/internal/config"
	"github.com/arzan03/cloudvault/internal/middleware"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Services bundles what the handlers depend on.
type Services struct {
	Auth      *services.AuthService
	Resources *services.ResourceService
	Shares    *services.ShareService
	Gateway   *services.GatewayService
	Logs      *services.ActivityLogService
}

// NewApp builds the fiber app with every route registered.
func NewApp(cfg *config.Config, svc Services, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "cloudvault",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: ErrorHandler,
		BodyLimit:    100 * 1024 * 1024,
		ProxyHeader:  cfg.Server.ProxyHeader,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New())

	authRequired := middleware.Auth(svc.Auth)

	authH := NewAuthHandler(svc.Auth, cfg.Auth.AccessTokenTTL)
	auth := app.Group("/auth")
	auth.Post("/register", authH.Register)
	auth.Post("/login", authH.Login)
	auth.Get("/me", authRequired, authH.Me)

	userH := NewUserHandler(svc.Auth)
	users := app.Group("/users", authRequired)
	users.Get("/", userH.SearchUsers)
	users.Get("/:id", userH.GetUser)

	adminH := NewAdminHandler(svc.Auth, svc.Resources)
	admin := app.Group("/admin", authRequired, middleware.AdminOnly)
	admin.Get("/users", adminH.ListUsers)
	admin.Get("/files", adminH.ListAllFiles)
	admin.Get("/user/:userid", adminH.GetUserByID)
	admin.Delete("/file/:file_id", adminH.DeleteFile)

	fileH := NewFileHandler(svc.Resources)
	file := app.Group("/file", authRequired)
	file.Post("/upload", fileH.UploadFile)
	file.Get("/list", fileH.ListFiles)
	file.Get("/stats", fileH.FileStats)
	file.Get("/:id", fileH.GetFile)
	file.Patch("/:id", fileH.UpdateFile)
	file.Delete("/:id", fileH.DeleteFile)

	folderH := NewFolderHandler(svc.Resources)
	folder := app.Group("/folder", authRequired)
	folder.Post("/", folderH.CreateFolder)
	folder.Get("/list", folderH.ListFolders)
	folder.Put("/:id", folderH.UpdateFolder)
	folder.Delete("/:id", folderH.DeleteFolder)

	shareH := NewShareHandler(svc.Shares, svc.Gateway)
	shares := app.Group("/shares")
	shares.Get("/validate/:shareId", middleware.RateLimit(cfg.Validate.Rate, cfg.Validate.Burst), shareH.ValidateShare)
	shares.Post("/create", authRequired, shareH.CreateShare)
	shares.Get("/access/:shareId", authRequired, shareH.AccessShare)
	shares.Get("/download/:shareId", authRequired, shareH.DownloadShare)
	shares.Get("/my-shares", authRequired, shareH.MyShares)
	shares.Get("/shared-with-me", authRequired, shareH.SharedWithMe)
	shares.Get("/analytics/:shareId", authRequired, shareH.Analytics)

	logH := NewLogHandler(svc.Shares, svc.Logs)
	logs := app.Group("/logs", authRequired)
	logs.Get("/share/:shareId", logH.ShareLogs)
	logs.Get("/my-activity", logH.MyActivity)
	logs.Get("/my-shares-activity", logH.MySharesActivity)
	logs.Get("/analytics/overview", logH.AnalyticsOverview)
	logs.Get("/export/:shareId", logH.ExportLogs)

	app.Get("/health", func(c *fiber.Ctx) error {
		return ok(c, fiber.StatusOK, "ok", nil)
	})

	return app
}
