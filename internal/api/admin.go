package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fsmodels/internal/dsl"
)

type reloadReq struct {
	DSLRoot   string `json:"dsl_root"`   // директория с *.dsl
	EnumsRoot string `json:"enums_root"` // директория со справочниками enum
}

// POST /api/admin/reload — перечитать DSL и справочники; при находках линтера каталог не меняется
func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(ErrInvalidJSON, "", "Invalid JSON")}})
			return
		}
		dslRoot := strings.TrimSpace(req.DSLRoot)
		if dslRoot == "" {
			dslRoot = s.dslDir
		}
		enumsRoot := strings.TrimSpace(req.EnumsRoot)
		if enumsRoot == "" {
			enumsRoot = s.enumsDir
		}

		cat, err := LoadCatalog(dslRoot, enumsRoot)
		var lint *dsl.LintError
		switch {
		case errors.As(err, &lint):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "schema has blocking issues",
				"issues":  lint.Issues,
				"hint":    "fix DSL and retry",
				"dslRoot": dslRoot, "enumsRoot": enumsRoot,
			})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}

		s.Swap(cat)
		s.log.Info("catalog reloaded", "dsl", dslRoot, "enums", enumsRoot, "entities", cat.Registry.Len())
		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"dslRoot":    dslRoot,
			"enumsRoot":  enumsRoot,
			"entities":   cat.Registry.Len(),
			"enumGroups": len(cat.Enums),
		})
	}
}
