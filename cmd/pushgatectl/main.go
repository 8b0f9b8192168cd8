package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/db"
)

const usage = `usage: pushgatectl <command> [flags]

commands:
  tenant-add   register a tenant and print its credentials
  entity-add   register a tracked entity for a tenant
  entity-list  list a tenant's entities
`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "no .env file loaded:", err)
	}
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("pushgate_db_path", "data/pushgate")

	database, err := db.New(strings.TrimSpace(v.GetString("pushgate_db_path")))
	if err != nil {
		exitErr(fmt.Sprintf("open database: %v", err))
	}
	defer func() {
		_ = database.Close()
	}()

	ctx := context.Background()
	switch os.Args[1] {
	case "tenant-add":
		tenantAdd(ctx, database, os.Args[2:])
	case "entity-add":
		entityAdd(ctx, database, os.Args[2:])
	case "entity-list":
		entityList(ctx, database, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func tenantAdd(ctx context.Context, database *db.Database, args []string) {
	fs := flag.NewFlagSet("tenant-add", flag.ExitOnError)
	slug := fs.String("slug", "", "Tenant slug")
	name := fs.String("name", "", "Display name (defaults to slug)")
	_ = fs.Parse(args)

	*slug = strings.TrimSpace(*slug)
	if *slug == "" {
		exitErr("slug is required")
	}
	if strings.TrimSpace(*name) == "" {
		*name = *slug
	}

	tenant, err := database.CreateTenant(ctx, db.CreateTenantParams{
		Slug:          *slug,
		Name:          strings.TrimSpace(*name),
		AuthToken:     uuid.NewString(),
		WebhookSecret: uuid.NewString(),
		Enabled:       1,
	})
	if err != nil {
		exitErr(fmt.Sprintf("create tenant: %v", err))
	}

	fmt.Printf("tenant %s created\n", tenant.Slug)
	fmt.Printf("  auth token:     %s\n", tenant.AuthToken)
	fmt.Printf("  webhook secret: %s\n", tenant.WebhookSecret)
}

func entityAdd(ctx context.Context, database *db.Database, args []string) {
	fs := flag.NewFlagSet("entity-add", flag.ExitOnError)
	slug := fs.String("tenant", "", "Tenant slug")
	entityID := fs.String("entity", "", "Entity id")
	channel := fs.String("channel", "webhook", "Allowed channel: webhook, bus or entity")
	label := fs.String("label", "", "Display label (optional)")
	_ = fs.Parse(args)

	parsed, ok := ports.ParseChannel(*channel)
	if !ok {
		exitErr(fmt.Sprintf("unknown channel %q", *channel))
	}
	*slug = strings.TrimSpace(*slug)
	*entityID = strings.TrimSpace(*entityID)
	if *slug == "" || *entityID == "" {
		exitErr("tenant and entity are required")
	}

	tenant, err := database.GetTenantBySlug(ctx, *slug)
	if err != nil {
		exitErr(fmt.Sprintf("look up tenant %q: %v", *slug, err))
	}

	entity, err := database.CreateEntity(ctx, db.CreateEntityParams{
		TenantID: tenant.ID,
		EntityID: *entityID,
		Channel:  parsed.String(),
		Label:    strings.TrimSpace(*label),
	})
	if err != nil {
		exitErr(fmt.Sprintf("create entity: %v", err))
	}
	fmt.Printf("entity %s registered for %s on channel %s\n", entity.EntityID, tenant.Slug, entity.Channel)
}

func entityList(ctx context.Context, database *db.Database, args []string) {
	fs := flag.NewFlagSet("entity-list", flag.ExitOnError)
	slug := fs.String("tenant", "", "Tenant slug")
	_ = fs.Parse(args)

	*slug = strings.TrimSpace(*slug)
	if *slug == "" {
		exitErr("tenant is required")
	}

	tenant, err := database.GetTenantBySlug(ctx, *slug)
	if err != nil {
		exitErr(fmt.Sprintf("look up tenant %q: %v", *slug, err))
	}
	entities, err := database.ListEntities(ctx, tenant.ID)
	if err != nil {
		exitErr(fmt.Sprintf("list entities: %v", err))
	}
	for _, entity := range entities {
		label := entity.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%s\t%s\t%s\n", entity.EntityID, entity.Channel, label)
	}
}

func exitErr(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
