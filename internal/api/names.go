package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fsmodels/internal/model"
)

// schemaParam находит схему по :entity — имени схемы или коллекции, без учёта регистра.
// Нет схемы — 404 уже записан в ответ.
func schemaParam(c *gin.Context, cat *Catalog) (*model.Schema, bool) {
	raw := strings.TrimSpace(c.Param("entity"))
	if s, ok := cat.Registry.Resolve(raw); ok {
		return s, true
	}
	c.JSON(http.StatusNotFound, gin.H{
		"errors": []FieldError{ferr(ErrEntityNotFound, "entity", "Entity '"+raw+"' not found")},
	})
	return nil, false
}
