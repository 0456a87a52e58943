package main

import (
	"context"

	"github.com/kjk/diary/diary"
)

// Backend is implemented by local store and by apiclient.Client
type Backend interface {
	ListAll(ctx context.Context) (diary.Collection, error)
	GetOne(ctx context.Context, date string) (*diary.Entry, error)
	Upsert(ctx context.Context, e *diary.Entry) diary.Result
	Backups(ctx context.Context) ([]diary.Backup, error)
}

type localBackend struct {
	store *diary.Store
}

func (b localBackend) ListAll(ctx context.Context) (diary.Collection, error) {
	return b.store.ListAll(), nil
}

func (b localBackend) GetOne(ctx context.Context, date string) (*diary.Entry, error) {
	return b.store.GetOne(date), nil
}

func (b localBackend) Upsert(ctx context.Context, e *diary.Entry) diary.Result {
	return b.store.Upsert(e)
}

func (b localBackend) Backups(ctx context.Context) ([]diary.Backup, error) {
	return b.store.Backups()
}
