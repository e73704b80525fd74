package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
)

// Seed describes bootstrap tenants and accounts for a development backend.
type Seed struct {
	Tenants []SeedTenant `yaml:"tenants"`
	Users   []SeedUser   `yaml:"users"`
}

// SeedTenant is a tenant entry of a seed file.
type SeedTenant struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Status      string         `yaml:"status"`
	Environment string         `yaml:"environment"`
	Settings    map[string]any `yaml:"settings"`
}

// SeedUser is an account entry of a seed file. Tenants lists extra tenants
// the user may switch into besides Tenant.
type SeedUser struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Role      string   `yaml:"role"`
	Tenant    string   `yaml:"tenant"`
	Tenants   []string `yaml:"tenants"`
	Inactive  bool     `yaml:"inactive"`
}

// SeedStats counts what Apply created.
type SeedStats struct {
	Tenants, Users, Memberships, Skipped int
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// ApplySeed creates the seed's tenants, accounts and memberships.
// Entries that already exist are skipped, so applying a seed twice is safe.
func (s *AuthServiceImpl) ApplySeed(ctx context.Context, seed Seed) (SeedStats, error) {
	var st SeedStats
	for _, t := range seed.Tenants {
		tn := &model.Tenant{
			ID:          t.ID,
			Name:        t.Name,
			Status:      model.TenantStatus(orDefault(t.Status, string(model.TenantActive))),
			Environment: orDefault(t.Environment, "production"),
			Settings:    t.Settings,
		}
		if tn.Settings == nil {
			tn.Settings = map[string]any{}
		}
		switch err := s.tenants.Create(ctx, tn); {
		case errors.Is(err, errs.ErrAlreadyExists):
			st.Skipped++
		case err != nil:
			return st, fmt.Errorf("seed tenant %s: %w", t.ID, err)
		default:
			st.Tenants++
		}
	}

	for _, u := range seed.Users {
		role, ok := authz.ParseRole(u.Role)
		if !ok {
			return st, fmt.Errorf("seed user %s: %w: role %q", u.Email, errs.ErrInvalidInput, u.Role)
		}
		id, err := s.Register(ctx, NewAccount{
			Email: u.Email, Password: u.Password,
			FirstName: u.FirstName, LastName: u.LastName,
			Role: role, TenantID: u.Tenant, Inactive: u.Inactive,
		})
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			st.Skipped++
			continue
		case err != nil:
			return st, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		st.Users++

		tenants := u.Tenants
		if u.Tenant != "" {
			tenants = append([]string{u.Tenant}, tenants...)
		}
		for _, tid := range tenants {
			if err := s.tenants.AddMember(ctx, model.Membership{UserID: id, TenantID: tid}); err != nil {
				return st, fmt.Errorf("seed membership %s/%s: %w", u.Email, tid, err)
			}
			st.Memberships++
		}
	}
	return st, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
