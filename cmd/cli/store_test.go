package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ieazie/doc-extract/internal/config"
	"github.com/ieazie/doc-extract/internal/storage"
	"github.com/ieazie/doc-extract/internal/storage/file"
	"github.com/ieazie/doc-extract/internal/storage/redisstore"
	"github.com/ieazie/doc-extract/internal/storage/sealed"
)

func TestOpenStore_Kinds(t *testing.T) {
	ctx := context.Background()

	kv, closeFn, err := openStore(ctx, &config.Config{StoreKind: config.StoreMemory})
	require.NoError(t, err)
	require.IsType(t, &storage.Memory{}, kv)
	require.NoError(t, closeFn())

	dir := t.TempDir()
	kv, closeFn, err = openStore(ctx, &config.Config{StoreKind: config.StoreFile, StoreDir: dir})
	require.NoError(t, err)
	require.Equal(t, dir, kv.(*file.Store).Dir())
	require.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	kv, closeFn, err = openStore(ctx, &config.Config{StoreKind: config.StoreRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.IsType(t, &redisstore.Store{}, kv)
	require.NoError(t, kv.Set(ctx, storage.KeyUser, "{}"))
	require.True(t, mr.Exists(redisstore.DefaultPrefix+":"+storage.KeyUser))
	require.NoError(t, closeFn())

	_, _, err = openStore(ctx, &config.Config{StoreKind: "tape"})
	require.Error(t, err)
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := openStore(context.Background(), &config.Config{StoreKind: config.StoreRedis, RedisAddr: addr})
	require.ErrorContains(t, err, "redis store")
}

func TestOpenStore_Sealed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{StoreKind: config.StoreFile, StoreDir: dir, StoreSecret: "0123456789abcdef-secret"}

	kv, closeFn, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &sealed.Store{}, kv)

	require.NoError(t, kv.Set(ctx, storage.KeyTokens, `{"access_token":"abc"}`))
	raw, ok, err := file.New(dir).Get(ctx, storage.KeyTokens)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, raw, "abc")
}
