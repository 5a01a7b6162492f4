package main

import (
	"fmt"
	"log"
	"os"

	"gatherly-server/routes"
	"gatherly-server/services"
	"gatherly-server/storage"
	"gatherly-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	db := storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS for the web dashboard
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	notifier := services.NewNotificationService(db)
	participation := services.NewParticipationService(db, services.NewPaymentClientFromEnv(), notifier)
	settings := services.NewSettingsService(db)
	routes.Initialize(participation, settings)

	events := app.Party("/api/events")
	{
		events.Get("/", routes.ListEvents)
		events.Get("/{id:uint}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetEventView)
		events.Get("/{id:uint}/capacity", routes.GetEventCapacity)
		events.Post("/{id:uint}/register", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.RegisterForEvent)
		events.Delete("/{id:uint}/register", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.AbandonCheckout)
	}

	registrations := app.Party("/api/registrations")
	{
		registrations.Get("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetMyRegistrations)
	}

	users := app.Party("/api/users")
	{
		users.Get("/{id:uint}/registrations", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.GetUserRegistrations)
	}

	payments := app.Party("/api/payments")
	{
		payments.Post("/webhook", routes.PaymentWebhook)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/events/{id:uint}/participants", routes.AdminListParticipants)
		admin.Post("/participants/{id:uint}/approve", routes.AdminApproveParticipant)
		admin.Post("/participants/{id:uint}/reject", routes.AdminRejectParticipant)
		admin.Post("/participants/{id:uint}/waitlist", routes.AdminWaitlistParticipant)
		admin.Post("/participants/{id:uint}/reopen", routes.AdminReopenParticipant)
	}

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("🚀 Server starting on %s\n", addr)

	// Start server
	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
