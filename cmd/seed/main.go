package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/orgvault/internal/db"
	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/repos"
	"github.com/kestrelworks/orgvault/internal/services"
	"github.com/kestrelworks/orgvault/internal/utils"
)

type fixture struct {
	Departments []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"departments"`
	Users []struct {
		Email      string `yaml:"email"`
		Password   string `yaml:"password"`
		FullName   string `yaml:"full_name"`
		Role       string `yaml:"role"`
		Department string `yaml:"department"`
	} `yaml:"users"`
	Projects []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Budget      int64  `yaml:"budget"`
	} `yaml:"projects"`
}

// Seeds the database from a YAML fixture: departments first (users
// reference them by code), then users and projects concurrently.
func main() {
	log, err := logger.New("development")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	path := utils.GetEnv("SEED_FILE", "seed.yaml", log)
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("Failed to read seed file", "path", path, "error", err)
		os.Exit(1)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		log.Error("Failed to parse seed file", "path", path, "error", err)
		os.Exit(1)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	userService := services.NewUserService(thePG, log, repos.NewUserRepo(thePG, log))
	departmentService := services.NewDepartmentService(thePG, log, repos.NewDepartmentRepo(thePG, log))
	projectService := services.NewProjectService(thePG, log, repos.NewProjectRepo(thePG, log))

	ctx := context.Background()
	departmentIDs := map[string]uuid.UUID{}
	for _, d := range fx.Departments {
		department, _, _, err := departmentService.Create(ctx, services.CreateDepartmentInput{
			Code: d.Code,
			Name: d.Name,
		})
		if err != nil {
			log.Error("Failed to seed department", "code", d.Code, "error", err)
			os.Exit(1)
		}
		departmentIDs[department.Code] = department.ID
		log.Info("Seeded department", "code", department.Code)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, u := range fx.Users {
		g.Go(func() error {
			var departmentID *uuid.UUID
			if u.Department != "" {
				id, ok := departmentIDs[u.Department]
				if !ok {
					return fmt.Errorf("user %s references unknown department %q", u.Email, u.Department)
				}
				departmentID = &id
			}
			_, _, _, err := userService.Create(gctx, services.CreateUserInput{
				Email:      u.Email,
				Password:   u.Password,
				FullName:   u.FullName,
				Role:       u.Role,
				Department: departmentID,
			})
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			log.Info("Seeded user", "email", u.Email)
			return nil
		})
	}
	for _, p := range fx.Projects {
		g.Go(func() error {
			_, _, _, err := projectService.Create(gctx, services.CreateProjectInput{
				Name:        p.Name,
				Description: p.Description,
				Budget:      p.Budget,
			})
			if err != nil {
				return fmt.Errorf("seed project %s: %w", p.Name, err)
			}
			log.Info("Seeded project", "name", p.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("Seeding complete",
		"departments", len(fx.Departments),
		"users", len(fx.Users),
		"projects", len(fx.Projects),
	)
}
