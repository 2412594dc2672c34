package api

import (
	"undergame/internal/auth"
	"undergame/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupRouter(cfg *config.Config, rdb *redis.Client, gameAPI *GameAPI, dialogueAPI *DialogueAPI) *gin.Engine {
	r := gin.Default()
	subpath := cfg.Server.Subpath // e.g. "/undergame" or any custom path, always starts with '/'

	// API routes
	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))

		// Setup: only if no users
		group.POST("/setup", SetupHandler())

		// Auth
		group.POST("/auth/login", LoginHandler(cfg, rdb))
		group.POST("/auth/logout", auth.AuthMiddleware(cfg, rdb, false), LogoutHandler(rdb))
		group.GET("/auth/me", auth.AuthMiddleware(cfg, rdb, false), MeHandler())

		// Admin: users
		group.GET("/users", auth.AuthMiddleware(cfg, rdb, true), ListUsersHandler())
		group.POST("/users", auth.AuthMiddleware(cfg, rdb, true), CreateUserHandler())

		// User self-service
		group.GET("/users/me", auth.AuthMiddleware(cfg, rdb, false), GetMeHandler())
		group.PUT("/users/me", auth.AuthMiddleware(cfg, rdb, false), UpdateMeHandler())
		group.DELETE("/users/me", auth.AuthMiddleware(cfg, rdb, false), DeleteMeHandler())

		// Admin: user by id
		group.GET("/users/:id", auth.AuthMiddleware(cfg, rdb, true), GetUserByIdHandler())
		group.PUT("/users/:id", auth.AuthMiddleware(cfg, rdb, true), UpdateUserByIdHandler())
		group.DELETE("/users/:id", auth.AuthMiddleware(cfg, rdb, true), DeleteUserByIdHandler())

		// --- Game endpoints ---
		group.GET("/game/state", auth.AuthMiddleware(cfg, rdb, false), gameAPI.StateHandler())
		group.GET("/game/status/:participant_id", auth.AuthMiddleware(cfg, rdb, false), gameAPI.StatusHandler())
		group.POST("/game/action", auth.AuthMiddleware(cfg, rdb, false), gameAPI.SubmitActionHandler())
		group.POST("/game/advance", auth.AuthMiddleware(cfg, rdb, false), gameAPI.AdvanceRoundHandler())
		group.GET("/game/rounds", auth.AuthMiddleware(cfg, rdb, false), gameAPI.RoundsHandler())
		group.POST("/game/guess", auth.AuthMiddleware(cfg, rdb, false), gameAPI.GuessHandler())
		group.GET("/game/scores", auth.AuthMiddleware(cfg, rdb, false), gameAPI.ScoresHandler())

		// --- Dialogue endpoints ---
		group.POST("/chat", auth.AuthMiddleware(cfg, rdb, false), dialogueAPI.ChatHandler())
		group.GET("/chat/history/:thread_id", auth.AuthMiddleware(cfg, rdb, false), dialogueAPI.HistoryHandler())
		group.POST("/reset-memory", auth.AuthMiddleware(cfg, rdb, false), dialogueAPI.ResetMemoryHandler())

		// --- Streaming WebSocket endpoint ---
		group.GET("/ws/chat", dialogueAPI.WSChatHandler(cfg))

		// --- Online users count ---
		group.GET("/users/online", OnlineUserCountHandler(rdb))
	}
	return r
}
