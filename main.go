package main

import (
	"context"
	"net/http"

	"conveyor/bizerror"
	"conveyor/common"
	"conveyor/domain"
	"conveyor/event"
	"conveyor/infra/tracing"
	"conveyor/persistence"
	"conveyor/servehttp"
	"conveyor/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	common.Log.Info("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		common.Log.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			common.Log.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		common.Log.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowDefinition{},
		&domain.WorkflowStep{},
		&domain.WorkflowTransition{},
		&domain.WorkflowInstance{},
		&domain.WorkflowStepHistory{},
		&domain.InstanceCodeRecord{},
		&event.EventRecord{},
		&session.User{},
	).Error
	if err != nil {
		common.Log.Fatalf("database migration failed %v", err)
	}

	tracingCloser, err := tracing.SetupTracer()
	if err != nil {
		common.Log.Fatalf("tracer setup failed %v", err)
	}
	defer func() {
		_ = tracingCloser.Close()
	}()

	engine := gin.New()
	engine.Use(gin.Recovery(), tracing.TracingIngress(), bizerror.ErrorHandling(),
		servehttp.RateLimit(rate.Limit(100), 200))
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "conveyor")
	})

	session.RegisterSessionsHandler(engine)

	securedRoute := session.SimpleAuthFilter()
	servehttp.RegisterWorkflowDefinitionsHandler(engine, securedRoute)
	servehttp.RegisterWorkflowInstancesHandler(engine, securedRoute)
	servehttp.RegisterWorkflowTasksHandler(engine, securedRoute)

	servehttp.StartHTTPServer(engine)
}
