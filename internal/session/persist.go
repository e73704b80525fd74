package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/storage"
)

// errCorrupt marks a persisted session that cannot be decoded or is incomplete.
var errCorrupt = errors.New("corrupt persisted session")

type restored struct {
	tokens model.Tokens
	user   model.User
	tenant *model.Tenant
}

// load reads the persisted session. It returns (nil, nil) when nothing is stored.
func load(ctx context.Context, kv storage.KV) (*restored, error) {
	get := func(key string) (string, bool, error) {
		v, ok, err := kv.Get(ctx, key)
		switch {
		case errors.Is(err, storage.ErrUnreadable):
			return "", false, fmt.Errorf("%w: %s: %v", errCorrupt, key, err)
		case err != nil:
			return "", false, fmt.Errorf("read %s: %w", key, err)
		}
		return v, ok, nil
	}
	rawTokens, okT, err := get(storage.KeyTokens)
	if err != nil {
		return nil, err
	}
	rawUser, okU, err := get(storage.KeyUser)
	if err != nil {
		return nil, err
	}
	rawTenant, okTn, err := get(storage.KeyTenant)
	if err != nil {
		return nil, err
	}

	if !okT && !okU {
		if okTn {
			return nil, fmt.Errorf("%w: tenant without user", errCorrupt)
		}
		return nil, nil
	}
	if !okT || !okU {
		return nil, fmt.Errorf("%w: tokens and user must be stored together", errCorrupt)
	}

	var r restored
	if err := json.Unmarshal([]byte(rawTokens), &r.tokens); err != nil {
		return nil, fmt.Errorf("%w: tokens: %v", errCorrupt, err)
	}
	if r.tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", errCorrupt)
	}
	if err := json.Unmarshal([]byte(rawUser), &r.user); err != nil {
		return nil, fmt.Errorf("%w: user: %v", errCorrupt, err)
	}
	if r.user.ID == "" {
		return nil, fmt.Errorf("%w: user without id", errCorrupt)
	}
	if okTn {
		var t model.Tenant
		if err := json.Unmarshal([]byte(rawTenant), &t); err != nil {
			return nil, fmt.Errorf("%w: tenant: %v", errCorrupt, err)
		}
		r.tenant = &t
	}
	return &r, nil
}

// save writes the authenticated part of s. A nil tenant removes the stored one.
func save(ctx context.Context, kv storage.KV, s State) error {
	if !s.IsAuthenticated() {
		return wipe(ctx, kv)
	}
	var errList []error
	put := func(key string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			errList = append(errList, fmt.Errorf("encode %s: %w", key, err))
			return
		}
		if err := kv.Set(ctx, key, string(b)); err != nil {
			errList = append(errList, fmt.Errorf("write %s: %w", key, err))
		}
	}
	put(storage.KeyTokens, s.Tokens)
	put(storage.KeyUser, s.User)
	if s.Tenant != nil {
		put(storage.KeyTenant, s.Tenant)
	} else if err := kv.Remove(ctx, storage.KeyTenant); err != nil {
		errList = append(errList, fmt.Errorf("remove %s: %w", storage.KeyTenant, err))
	}
	return errors.Join(errList...)
}

// wipe removes every session key, attempting all of them.
func wipe(ctx context.Context, kv storage.KV) error {
	var errList []error
	for _, k := range storage.SessionKeys {
		if err := kv.Remove(ctx, k); err != nil {
			errList = append(errList, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	return errors.Join(errList...)
}

func logStorageErr(log *zap.Logger, op string, err error) {
	if err != nil {
		log.Error("session storage failed", zap.String("op", op), zap.Error(err))
	}
}
