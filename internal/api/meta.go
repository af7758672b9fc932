package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"fsmodels/internal/model"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Module     string `json:"module,omitempty"`
	Entity     string `json:"entity"`
	Collection string `json:"collection"`
}

func MetaListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		schemas := cat.Registry.Schemas()
		out := make([]metaEntityListItem, 0, len(schemas))
		for _, sc := range schemas {
			item := metaEntityListItem{Entity: sc.Name(), Collection: sc.Collection()}
			if e := cat.Entities[sc.Name()]; e != nil {
				item.Module = e.Module
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaField struct {
	Name     string            `json:"name"`
	Type     string            `json:"type,omitempty"`
	ElemType string            `json:"elemType,omitempty"`
	Ref      string            `json:"ref,omitempty"`
	Enum     []string          `json:"enum,omitempty"`
	Required bool              `json:"required"`
	Options  map[string]string `json:"options,omitempty"`
}

type metaRelation struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	Collection string `json:"collection"`
	LinkKey    string `json:"linkKey"`
	Required   bool   `json:"required"`
}

type metaEntity struct {
	Module     string         `json:"module,omitempty"`
	Entity     string         `json:"entity"`
	Collection string         `json:"collection"`
	Fields     []metaField    `json:"fields"`
	Relations  []metaRelation `json:"relations"`
}

func MetaEntityHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		out := metaEntity{Entity: schema.Name(), Collection: schema.Collection()}

		declared := map[string]metaField{}
		if e := cat.Entities[schema.Name()]; e != nil {
			out.Module = e.Module
			for _, f := range e.Fields {
				opts := make(map[string]string, len(f.Options))
				for k, v := range f.Options {
					opts[k] = v
				}
				declared[f.Name] = metaField{
					Name:     f.Name,
					Type:     f.Type,
					ElemType: f.ElemType,
					Ref:      f.RefTarget,
					Enum:     append([]string(nil), f.Enum...),
					Options:  opts,
				}
			}
		}

		for _, name := range schema.Fields() {
			mf, ok := declared[name]
			if !ok {
				mf = metaField{Name: name}
			}
			fd, _ := schema.Field(name)
			mf.Required = fd.Required
			if name == model.IDField && mf.Type == "" {
				mf.Type = "string"
			}
			out.Fields = append(out.Fields, mf)
		}
		for _, name := range schema.Relations() {
			rel, _ := schema.Relation(name)
			out.Relations = append(out.Relations, metaRelation{
				Name:       name,
				Target:     rel.Target.Name(),
				Collection: rel.Target.Collection(),
				LinkKey:    model.LinkKey(rel.Target.Collection()),
				Required:   rel.Required,
			})
		}
		if out.Relations == nil {
			out.Relations = []metaRelation{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func MetaCatalogHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		name := c.Param("name")
		dir, ok := cat.Enums[name]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "name", "Catalog '"+name+"' not found")}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":  dir.Name,
			"items": dir.Items,
		})
	}
}

func MetaCatalogListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		names := make([]string, 0, len(cat.Enums))
		for name := range cat.Enums {
			names = append(names, name)
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, names)
	}
}
