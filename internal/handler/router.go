package handler

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/middleware"
)

type RouterDeps struct {
	Users    *UserHandler
	Todos    *TodoHandler
	Health   *HealthHandler
	Resolver middleware.TokenResolver
}

func RegisterRoutes(r gin.IRouter, deps RouterDeps) {
	if deps.Health != nil {
		r.GET("/healthz", deps.Health.Healthz)
	}

	r.POST("/users", deps.Users.Signup)
	r.POST("/users/login", deps.Users.Login)

	me := r.Group("/users/me")
	me.Use(middleware.Authenticate(deps.Resolver, http.StatusUnauthorized))
	me.GET("", deps.Users.Me)
	me.PATCH("", deps.Users.UpdateMe)
	me.DELETE("", deps.Users.DeleteMe)
	me.DELETE("/token", deps.Users.Logout)

	todos := r.Group("/todos")
	todos.Use(middleware.Authenticate(deps.Resolver, http.StatusNotFound))
	todos.POST("", deps.Todos.Create)
	todos.GET("", deps.Todos.List)
	todos.GET("/:id", deps.Todos.Get)
	todos.DELETE("/:id", deps.Todos.Delete)
	todos.PATCH("/:id", deps.Todos.Patch)
}

func NewEngine(deps RouterDeps, corsAllowlist []string) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recover(),
		middleware.CORS(corsAllowlist),
		gzip.Gzip(gzip.DefaultCompression),
	)
	RegisterRoutes(engine, deps)
	return engine
}
