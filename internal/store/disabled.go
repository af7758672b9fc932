package store

import (
	"context"
	"fmt"
)

// Disabled — хранилище-заглушка, когда подключение не выполнялось.
// Ссылки создаются как обычно, любая операция возвращает ErrUnavailable.
func Disabled(reason string) Client {
	return &disabled{reason: reason, ids: NewIDSource()}
}

type disabled struct {
	reason string
	ids    *IDSource
}

func (d *disabled) Collection(name string) Collection {
	return &disabledCollection{d: d, name: name}
}

func (d *disabled) Close() error { return nil }

func (d *disabled) err() error {
	return fmt.Errorf("%w: %s", ErrUnavailable, d.reason)
}

type disabledCollection struct {
	d    *disabled
	name string
}

func (c *disabledCollection) Name() string { return c.name }

func (c *disabledCollection) Doc(id string) Document {
	return &disabledDocument{d: c.d, id: id}
}

func (c *disabledCollection) NewDoc() Document {
	return &disabledDocument{d: c.d, id: c.d.ids.New()}
}

type disabledDocument struct {
	d  *disabled
	id string
}

func (x *disabledDocument) ID() string { return x.id }

func (x *disabledDocument) Get(context.Context) (*Snapshot, error) { return nil, x.d.err() }

func (x *disabledDocument) Set(context.Context, map[string]any) (*WriteResult, error) {
	return nil, x.d.err()
}

func (x *disabledDocument) Update(context.Context, map[string]any) (*WriteResult, error) {
	return nil, x.d.err()
}

func (x *disabledDocument) Delete(context.Context) (*WriteResult, error) { return nil, x.d.err() }
