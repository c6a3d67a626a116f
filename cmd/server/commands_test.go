package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
)

func TestRootCommand_Subcommands(t *testing.T) {
	c := qt.New(t)

	root := newRootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"serve", "migrate", "seed", "create-admin"} {
		c.Assert(names, qt.Contains, want)
	}
}

func TestRootCommand_Version(t *testing.T) {
	c := qt.New(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	c.Assert(root.Execute(), qt.IsNil)
	c.Assert(out.String(), qt.Contains, version)
}

func TestCreateAdminCommand_ValidatesBeforeConnecting(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing email",
			args:    []string{"create-admin", "--password", "long-enough"},
			wantErr: "--email is required",
		},
		{
			name:    "short password",
			args:    []string{"create-admin", "--email", "owner@example.com", "--password", "short"},
			wantErr: "password must be at least 8 characters.*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			t.Setenv(adminPasswordEnv, "")

			root := newRootCommand()
			root.SetArgs(append(tt.args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))

			err := root.Execute()
			c.Assert(err, qt.ErrorMatches, tt.wantErr)
		})
	}
}

func TestAdminRequestFromFlags(t *testing.T) {
	t.Run("password from environment", func(t *testing.T) {
		c := qt.New(t)
		t.Setenv(adminPasswordEnv, "from-the-env")

		req, err := adminRequestFromFlags(" owner@example.com ", "", "")
		c.Assert(err, qt.IsNil)
		c.Assert(req, qt.Equals, adminRequest{email: "owner@example.com", password: "from-the-env", name: "Admin"})
	})

	t.Run("flag wins over environment", func(t *testing.T) {
		c := qt.New(t)
		t.Setenv(adminPasswordEnv, "from-the-env")

		req, err := adminRequestFromFlags("owner@example.com", "from-the-flag", "Owner")
		c.Assert(err, qt.IsNil)
		c.Assert(req.password, qt.Equals, "from-the-flag")
		c.Assert(req.name, qt.Equals, "Owner")
	})
}

type fakeAdminCreator struct {
	got adminRequest
	err error
}

func (f *fakeAdminCreator) CreateAdmin(_ context.Context, email, password, name string) (*domain.User, error) {
	f.got = adminRequest{email: email, password: password, name: name}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: "u-1", Email: email, Name: name, Role: domain.RoleAdmin}, nil
}

func TestCreateAdmin(t *testing.T) {
	c := qt.New(t)

	creator := &fakeAdminCreator{}
	var out bytes.Buffer
	req := adminRequest{email: "owner@example.com", password: "long-enough", name: "Owner"}

	c.Assert(createAdmin(context.Background(), creator, req, &out), qt.IsNil)
	c.Assert(creator.got, qt.Equals, req)
	c.Assert(out.String(), qt.Equals, "created admin owner@example.com (u-1)\n")
}

func TestCreateAdmin_Error(t *testing.T) {
	c := qt.New(t)

	creator := &fakeAdminCreator{err: errors.New("email already registered")}
	err := createAdmin(context.Background(), creator, adminRequest{email: "owner@example.com"}, &bytes.Buffer{})

	c.Assert(err, qt.ErrorMatches, "create admin: email already registered")
}
