// Package gui is a very simple gin HTTP server for solving instances on
// demand and looking at what the scheduler has been doing.
package gui

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/connector"
	"github.com/amsen20/reconf/internal/instance"
	"github.com/amsen20/reconf/logging"
	"github.com/amsen20/reconf/statistics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logging.Component("gui")

type Server struct {
	router *gin.Engine
	params alg.Parameters
	// optional, serves /state when set
	connector connector.Connector

	mutex sync.Mutex
	plans map[string]*instance.PlanDesc
}

func NewServer(params alg.Parameters, conn connector.Connector) *Server {
	server := &Server{
		router:    gin.Default(),
		params:    params,
		connector: conn,
		plans:     make(map[string]*instance.PlanDesc),
	}
	server.router.Use(cors.Default())
	server.registerRoutes()
	return server
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) registerRoutes() {
	server.router.POST("/solve", server.solve)

	server.router.GET("/plans/:id", func(ctx *gin.Context) {
		server.mutex.Lock()
		desc, ok := server.plans[ctx.Param("id")]
		server.mutex.Unlock()

		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no such plan"})
			return
		}
		ctx.JSON(http.StatusOK, desc)
	})

	server.router.GET("/statistics", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, statistics.Snapshot())
	})

	server.router.GET("/state", func(ctx *gin.Context) {
		if server.connector == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no connector"})
			return
		}
		inst, err := server.connector.Snapshot(ctx.Request.Context())
		if err != nil {
			log.Err(err).Send()
			ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"content": inst.Model.Display(),
		})
	})

	server.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// solve accepts an instance in YAML or JSON and answers with the plan and
// the identifier it is kept under.
func (server *Server) solve(ctx *gin.Context) {
	data, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	desc, err := instance.Parse(data)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inst, err := desc.Build()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := server.params
	if params.Durations != nil {
		params.Durations = params.Durations.Clone()
	}
	res, err := alg.Solve(ctx.Request.Context(), params, inst)
	if err != nil {
		var cfgErr *alg.ConfigurationError
		if errors.As(err, &cfgErr) {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.Err(err).Msg("solve failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	id := uuid.New().String()
	planDesc := instance.DescribeResult(res)
	server.mutex.Lock()
	server.plans[id] = planDesc
	server.mutex.Unlock()

	ctx.JSON(http.StatusOK, gin.H{"id": id, "plan": planDesc})
}

// Run serves until the context is done.
func (server *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: server.router}
	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()
	log.Info().Msgf("listening on %s", addr)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}
