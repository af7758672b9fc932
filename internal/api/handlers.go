package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"fsmodels/internal/model"
	"fsmodels/internal/persist"
)

// POST /api/:entity — новая запись, документ пишется целиком
func CreateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		body, ok := bindBody(c)
		if !ok {
			return
		}
		m, err := s.buildModel(c.Request.Context(), schema, body)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if _, err := m.Save(c.Request.Context(), persist.WithPatch(false)); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, m.ToMap())
	}
}

// GET /api/:entity/:id — документ как он лежит в хранилище (с ключами ссылок)
func GetOneHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		id := c.Param("id")
		m, _ := persist.New(s.client, schema, map[string]any{model.IDField: id})
		doc, err := m.WithLogger(s.log).Retrieve(c.Request.Context(), false)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if len(doc) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "id", "Record '"+id+"' not found")}})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// PUT /api/:entity/:id — полная перезапись
func UpdateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		body, ok := bindBody(c)
		if !ok {
			return
		}
		body[model.IDField] = c.Param("id")
		m, err := s.buildModel(c.Request.Context(), schema, body)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if _, err := m.Save(c.Request.Context(), persist.WithPatch(false)); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m.ToMap())
	}
}

// PATCH /api/:entity/:id — тело накладывается на прочитанный документ, запись частичная
func UpdatePartialHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		body, ok := bindBody(c)
		if !ok {
			return
		}
		id := c.Param("id")
		current, _ := persist.New(s.client, schema, map[string]any{model.IDField: id})
		doc, err := current.WithLogger(s.log).Retrieve(ctx, false)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if len(doc) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "id", "Record '"+id+"' not found")}})
			return
		}

		merged := map[string]any{model.IDField: id}
		for _, name := range schema.Fields() {
			if v, ok := doc[name]; ok {
				merged[name] = v
			}
		}
		// связи, не переданные в теле, восстанавливаются по ключам ссылок документа
		for _, name := range schema.Relations() {
			rel, _ := schema.Relation(name)
			if linked, ok := doc[model.LinkKey(rel.Target.Collection())].(string); ok && linked != "" {
				merged[name] = linked
			}
		}
		for k, v := range body {
			if k != model.IDField {
				merged[k] = v
			}
		}

		m, err := s.buildModel(ctx, schema, merged)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if _, err := m.Save(ctx, persist.WithPatch(true)); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m.ToMap())
	}
}

// DELETE /api/:entity/:id
func DeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cat := s.catalog()
		schema, ok := schemaParam(c, cat)
		if !ok {
			return
		}
		id := c.Param("id")
		m, _ := persist.New(s.client, schema, map[string]any{model.IDField: id})
		m.WithLogger(s.log)
		doc, err := m.Retrieve(ctx, false)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if len(doc) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "id", "Record '"+id+"' not found")}})
			return
		}
		if _, err := m.Delete(ctx); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func bindBody(c *gin.Context) (map[string]any, bool) {
	var obj map[string]any
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(ErrInvalidJSON, "", "Invalid JSON")}})
		return nil, false
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, true
}

// buildModel собирает запись из тела запроса. Значение связи: объект — вложенная запись,
// строка — id существующей записи цели (читается из хранилища).
func (s *Server) buildModel(ctx context.Context, schema *model.Schema, body map[string]any) (*persist.Model, error) {
	var errs []FieldError
	rec, err := s.buildRecord(ctx, schema, body, "", &errs)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return nil, newHTTPError(statusFor(errs), errs...)
	}
	return persist.Bind(s.client, rec).WithLogger(s.log), nil
}

func (s *Server) buildRecord(ctx context.Context, schema *model.Schema, body map[string]any, prefix string, errs *[]FieldError) (*model.Record, error) {
	init := make(map[string]any, len(body))
	for k, v := range body {
		if k == model.IDField {
			init[k] = v
			continue
		}
		if rel, ok := schema.Relation(k); ok {
			val, err := s.relationValue(ctx, rel.Target, v, prefix+k, errs)
			if err != nil {
				return nil, err
			}
			init[k] = val
			continue
		}
		if _, ok := schema.Field(k); !ok {
			*errs = append(*errs, ferr(string(model.ErrUnknownField), prefix+k, "Field '"+k+"' is not declared on "+schema.Name()))
			continue
		}
		init[k] = v
	}
	rec, _ := model.New(schema, init)
	return rec, nil
}

func (s *Server) relationValue(ctx context.Context, target *model.Schema, v any, path string, errs *[]FieldError) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return s.buildRecord(ctx, target, t, path+".", errs)
	case string:
		// связи ссылки не загружаются и остаются nil: в каскаде она пишется частично,
		// поэтому её собственные ключи ссылок в документе сохраняются
		ref, _ := persist.New(s.client, target, map[string]any{model.IDField: t})
		doc, err := ref.WithLogger(s.log).Retrieve(ctx, true)
		if err != nil {
			return nil, err
		}
		if len(doc) == 0 {
			*errs = append(*errs, ferr(ErrRefNotFound, path, "Referenced '"+target.Name()+"' '"+t+"' not found"))
			return nil, nil
		}
		return ref, nil
	default:
		// nil или чужой тип: разберётся валидация связи
		return v, nil
	}
}

// statusFor: ссылки на несуществующее — 422, остальное — 400.
func statusFor(errs []FieldError) int {
	for _, e := range errs {
		if e.Code != ErrRefNotFound {
			return http.StatusBadRequest
		}
	}
	return http.StatusUnprocessableEntity
}
