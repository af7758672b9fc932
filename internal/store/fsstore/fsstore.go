// Package fsstore адаптирует Cloud Firestore к интерфейсам store.
package fsstore

import (
	"context"
	"fmt"
	"os"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fsmodels/internal/store"
)

const (
	credentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"
	emulatorEnv    = "FIRESTORE_EMULATOR_HOST"
)

// Available: есть учётные данные или адрес эмулятора.
func Available() bool {
	return os.Getenv(credentialsEnv) != "" || os.Getenv(emulatorEnv) != ""
}

// Client — store.Client поверх *firestore.Client.
type Client struct {
	fs *firestore.Client
}

// Open подключается к проекту; пустой projectID — автоопределение.
func Open(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	fs, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("fsstore: connect: %w", err)
	}
	return &Client{fs: fs}, nil
}

func (c *Client) Collection(name string) store.Collection {
	return &collection{ref: c.fs.Collection(name)}
}

func (c *Client) Close() error { return c.fs.Close() }

type collection struct {
	ref *firestore.CollectionRef
}

func (c *collection) Name() string { return c.ref.ID }

func (c *collection) Doc(id string) store.Document {
	return &document{ref: c.ref.Doc(id)}
}

func (c *collection) NewDoc() store.Document {
	return &document{ref: c.ref.NewDoc()}
}

type document struct {
	ref *firestore.DocumentRef
}

func (d *document) ID() string { return d.ref.ID }

func (d *document) Get(ctx context.Context) (*store.Snapshot, error) {
	snap, err := d.ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return &store.Snapshot{ID: d.ref.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{ID: d.ref.ID, Data: snap.Data()}, nil
}

func (d *document) Set(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	res, err := d.ref.Set(ctx, data)
	return result(res, err)
}

func (d *document) Update(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	res, err := d.ref.Update(ctx, updates(data))
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrNotFound, d.ref.Path, err)
	}
	return result(res, err)
}

func (d *document) Delete(ctx context.Context) (*store.WriteResult, error) {
	res, err := d.ref.Delete(ctx)
	return result(res, err)
}

// updates: ключи верхнего уровня как FieldPath, чтобы точки в именах не разбирались как путь.
func updates(data map[string]any) []firestore.Update {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: data[k]})
	}
	return out
}

func result(res *firestore.WriteResult, err error) (*store.WriteResult, error) {
	if err != nil {
		return nil, err
	}
	return &store.WriteResult{UpdateTime: res.UpdateTime}, nil
}
