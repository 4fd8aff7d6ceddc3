// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// API exposes read-only tracked transaction snapshots over HTTP for status
// polling. Mutations happen only through the builders, never through HTTP.
type API struct {
	tracker *Tracker
}

// NewAPI is a constructor for API.
func NewAPI(tracker *Tracker) *API {
	return &API{tracker: tracker}
}

// Register attaches the tracker routes to the given router group.
func (a *API) Register(router gin.IRouter) {
	router.GET("/transactions", a.listTransactions)
	router.GET("/transactions/:id", a.getTransaction)
	router.GET("/errors", a.listErrors)
}

// Router returns a standalone engine serving the tracker routes.
func (a *API) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	a.Register(engine)

	return engine
}

// listTransactions handles GET /transactions.
func (a *API) listTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transactions": a.tracker.List()})
}

// getTransaction handles GET /transactions/:id.
func (a *API) getTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})

		return
	}

	transaction, err := a.tracker.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})

		return
	}

	c.JSON(http.StatusOK, transaction)
}

// listErrors handles GET /errors.
func (a *API) listErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": a.tracker.Errors()})
}
