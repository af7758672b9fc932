package persist

import (
	"context"
	"fmt"
	"maps"

	"fsmodels/internal/model"
	"fsmodels/internal/store"
)

// SaveResult — id записи и непрозрачный результат хранилища.
type SaveResult struct {
	ID     string             `json:"id"`
	Result *store.WriteResult `json:"result"`
}

type saveOptions struct {
	patch      bool
	additional map[string]any
	child      bool
}

// SaveOption настраивает Save.
type SaveOption func(*saveOptions)

// WithPatch: true (по умолчанию) — частичное обновление существующего документа,
// false — полная перезапись. Новый документ всегда пишется целиком.
func WithPatch(patch bool) SaveOption {
	return func(o *saveOptions) { o.patch = patch }
}

// WithAdditional — дополнительные ключи документа; перекрывают всё остальное.
func WithAdditional(fields map[string]any) SaveOption {
	return func(o *saveOptions) {
		if o.additional == nil {
			o.additional = map[string]any{}
		}
		maps.Copy(o.additional, fields)
	}
}

// cascade — состояние одного вызова Save по дереву связей.
type cascade struct {
	chain map[*model.Record]bool   // записи на текущем пути рекурсии
	done  map[*model.Record]string // уже записанные в этом вызове -> id
}

// Save валидирует запись, сохраняет связанные записи, подставляет их id и пишет документ.
func (m *Model) Save(ctx context.Context, opts ...SaveOption) (SaveResult, error) {
	o := saveOptions{patch: true}
	for _, opt := range opts {
		opt(&o)
	}
	c := &cascade{
		chain: map[*model.Record]bool{},
		done:  map[*model.Record]string{},
	}
	return m.save(ctx, o, c)
}

func (m *Model) save(ctx context.Context, o saveOptions, c *cascade) (SaveResult, error) {
	rec := m.Record
	if c.chain[rec] {
		return SaveResult{}, fmt.Errorf("%w: %s is already being saved in this cascade", model.ErrCyclicRelation, rec)
	}
	c.chain[rec] = true
	defer delete(c.chain, rec)

	// 1. валидация до любых обращений к хранилищу
	data, err := m.Clean()
	if err != nil {
		return SaveResult{}, err
	}

	// 2. адрес документа
	var doc store.Document
	if id := m.ID(); id != "" {
		doc = m.coll.Doc(id)
	} else {
		doc = m.coll.NewDoc()
		if err := m.Set(model.IDField, doc.ID()); err != nil {
			return SaveResult{}, err
		}
	}
	// id не хранится атрибутом документа, Retrieve возвращает его обратно
	delete(data, model.IDField)

	// 3. новый ли документ
	snap, err := doc.Get(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	newRecord := !snap.Exists()

	// 4. связи: сначала дети, в документ родителя попадают только их id.
	// Дети всегда пишутся частично: существующий документ ребёнка не перезаписывается
	for _, name := range rec.Relations() {
		delete(data, name)
		child := m.related(rec.Get(name))
		if child == nil {
			continue
		}
		childID, seen := c.done[child.Record]
		if !seen {
			res, err := child.save(ctx, saveOptions{
				patch:      true,
				child:      true,
				additional: map[string]any{model.LinkKey(m.collection): m.ID()},
			}, c)
			if err != nil {
				return SaveResult{}, fmt.Errorf("save %s.%s: %w", rec.Schema().Name(), name, err)
			}
			childID = res.ID
			c.done[child.Record] = childID
		}
		data[model.LinkKey(child.collection)] = childID
	}

	// 5. явные ключи вызывающего важнее
	maps.Copy(data, o.additional)

	// 6. маркер для читателей: patch существующей записи, связи могли устареть
	if !o.child {
		data[model.FetchRelatedKey] = o.patch && !newRecord
	}

	// 7. запись
	var res *store.WriteResult
	if !newRecord && o.patch {
		res, err = doc.Update(ctx, data)
	} else {
		res, err = doc.Set(ctx, data)
	}
	if err != nil {
		return SaveResult{}, err
	}
	m.persisted = true
	m.log.Debug("document saved", "id", doc.ID(), "new", newRecord, "patch", o.patch, "child", o.child)
	return SaveResult{ID: m.ID(), Result: res}, nil
}

// related приводит значение слота связи к Model; уже привязанная Model используется как есть.
func (m *Model) related(v any) *Model {
	if pm, ok := v.(*Model); ok {
		if pm == nil || pm.Record == nil {
			return nil
		}
		return pm
	}
	rec, ok := model.AsRecord(v)
	if !ok {
		return nil
	}
	return Bind(m.client, rec).WithLogger(m.base)
}
