// Package seed bootstraps a fresh installation: an administrator account and,
// optionally, a demo user with a small folder tree. Existing accounts and
// folders are left untouched so seeding can be repeated.
package seed

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Account describes one seeded user.
type Account struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	Role      models.Role
}

type Options struct {
	Admin Account
	// Demo is seeded when its Email is set.
	Demo Account
	Cost int
}

// DefaultOptions returns the accounts created by a plain seed run. Passwords
// are left for the caller to fill.
func DefaultOptions() Options {
	return Options{
		Admin: Account{
			Email: "admin@bigdatakeeper.com", Username: "admin",
			FirstName: "Admin", LastName: "User", Role: models.RoleAdmin,
		},
		Demo: Account{
			Email: "user@bigdatakeeper.com", Username: "testuser",
			FirstName: "Test", LastName: "User", Role: models.RoleUser,
		},
		Cost: 12,
	}
}

type demoFolder struct {
	name        string
	description string
	parent      string
}

var demoFolders = []demoFolder{
	{name: "Root", description: "Root folder for all files"},
	{name: "Documents", description: "Document files", parent: "/Root"},
	{name: "Images", description: "Image files", parent: "/Root"},
}

// Result lists what a run created.
type Result struct {
	Users   []string
	Folders []string
}

type Seeder struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewSeeder(db dbx.Transactor, m repomanager.RepositoryManager, log logging.Logger) *Seeder {
	return &Seeder{db: db, repomanager: m, log: log.With("module", "seed")}
}

// Run seeds everything in one transaction.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Admin.Password == "" {
		return nil, fmt.Errorf("admin password is required")
	}

	res := &Result{}
	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.ensureUser(ctx, tx, opts.Admin, opts.Cost, res); err != nil {
			return err
		}
		if opts.Demo.Email == "" {
			return nil
		}
		if opts.Demo.Password == "" {
			return fmt.Errorf("demo password is required")
		}
		demo, err := s.ensureUser(ctx, tx, opts.Demo, opts.Cost, res)
		if err != nil {
			return err
		}
		return s.ensureFolders(ctx, tx, demo.ID, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, tx dbx.DBTX, a Account, cost int, res *Result) (*models.User, error) {
	repo := s.repomanager.Users(tx)

	existing, err := repo.GetByEmail(ctx, a.Email)
	if err == nil {
		s.log.Info(ctx, "user exists", "email", a.Email)
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error looking up %s: %w", a.Email, err)
	}

	digest, err := auth.HashPassword(a.Password, cost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	role := a.Role
	if role == "" {
		role = models.RoleUser
	}

	user, err := repo.Create(ctx, &models.User{
		ID:             uuid.NewString(),
		Email:          a.Email,
		Username:       a.Username,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		PasswordDigest: digest,
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", a.Email, err)
	}

	s.log.Info(ctx, "user created", "email", user.Email, "role", string(user.Role))
	res.Users = append(res.Users, user.Email)
	return user, nil
}

func (s *Seeder) ensureFolders(ctx context.Context, tx dbx.DBTX, userID string, res *Result) error {
	repo := s.repomanager.Folders(tx)

	existing, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error listing folders: %w", err)
	}
	byPath := make(map[string]string, len(existing))
	for _, f := range existing {
		byPath[f.Path] = f.ID
	}

	for _, df := range demoFolders {
		p := path.Join("/", df.parent, df.name)
		if _, ok := byPath[p]; ok {
			continue
		}

		f := &models.Folder{ID: uuid.NewString(), Name: df.name, Path: p, Description: df.description, UserID: userID}
		if df.parent != "" {
			parentID, ok := byPath[df.parent]
			if !ok {
				return fmt.Errorf("parent folder %s missing", df.parent)
			}
			f.ParentID = &parentID
		}

		if _, err := repo.Create(ctx, f); err != nil {
			return fmt.Errorf("error creating folder %s: %w", p, err)
		}
		byPath[p] = f.ID
		res.Folders = append(res.Folders, p)
	}
	return nil
}
