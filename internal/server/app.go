package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emojournal/backend/internal/config"
	"emojournal/backend/internal/logger"
)

type App struct {
	cfg config.Config
	db  *pgxpool.Pool
	log *logger.Logger
	ai  *AIService

	gemini *GeminiClient
	memory ChatMemoryStore
}

type AuthUser struct {
	ID    string
	Email *string
	Name  string
}

func New(cfg config.Config, db *pgxpool.Pool, log *logger.Logger) (*App, error) {
	app := &App{cfg: cfg, db: db, log: log}

	gemini, err := NewGeminiClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	app.gemini = gemini

	ttl := time.Duration(cfg.ChatHistoryTTLMin) * time.Minute
	if cfg.RedisURL != "" {
		memory, err := NewRedisChatStore(context.Background(), cfg.RedisURL, cfg.ChatHistoryTurnMax, ttl)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-memory chat history", "error", err)
			app.memory = NewMemoryChatStore(cfg.ChatHistoryTurnMax)
		} else {
			app.memory = memory
		}
	} else {
		app.memory = NewMemoryChatStore(cfg.ChatHistoryTurnMax)
	}

	app.ai = NewAIService(gemini, NewPGReportStore(db), app.memory, NewCrisisDetector(), log)
	return app, nil
}

func (a *App) Close() {
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.log.Warn("gemini client close failed", "error", err)
		}
	}
	if closer, ok := a.memory.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn("chat memory close failed", "error", err)
		}
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.POST("/ai/chat", a.createChatMessage)
	api.POST("/ai/daily-report", a.createDailyReport)
	api.POST("/ai/weekly-report", a.createWeeklyReport)
	api.GET("/ai/reports", a.listReports)
	api.DELETE("/ai/reports/:report_id", a.deleteReport)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "emojournal-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.getOrCreateUser(c.Request.Context(), sub, claims)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func toOptionalString(raw any) *string {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" {
			return &trimmed
		}
	}
	return nil
}

func (a *App) getOrCreateUser(ctx context.Context, userID string, claims jwt.MapClaims) (AuthUser, error) {
	user := AuthUser{}
	var email *string

	err := a.db.QueryRow(
		ctx,
		`SELECT id, email, name FROM "User" WHERE id = $1`,
		userID,
	).Scan(&user.ID, &email, &user.Name)
	if err == nil {
		user.Email = email
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, err
	}
	if !a.cfg.AuthAutoCreateUser {
		return AuthUser{}, errors.New("User not found")
	}

	email = toOptionalString(claims["email"])

	name := ""
	if rawName, ok := claims["name"].(string); ok {
		name = strings.TrimSpace(rawName)
	}
	if name == "" {
		name = fmt.Sprintf("user-%s", truncate(userID, 8))
	}

	if _, err := a.db.Exec(
		ctx,
		`INSERT INTO "User" (id, email, name, "createdAt")
		 VALUES ($1, $2, $3, NOW())`,
		userID,
		email,
		name,
	); err != nil {
		return AuthUser{}, err
	}

	return AuthUser{
		ID:    userID,
		Email: email,
		Name:  name,
	}, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
