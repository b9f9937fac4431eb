// seed inserts development sample data into the Postgres store; use with go run ./cmd/seed.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"

	"github.com/shopspring/decimal"

	"greenline/backend/internal/app"
	"greenline/backend/internal/config"
	"greenline/backend/internal/document"
	"greenline/backend/internal/quote"
	quotedomain "greenline/backend/internal/quote/domain"
	roledomain "greenline/backend/internal/role/domain"
	rolerepo "greenline/backend/internal/role/repository"
	"greenline/backend/internal/state"
	"greenline/backend/internal/store"
	userrepo "greenline/backend/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
	devOrgName   = "Acme Landscaping"
	memberEmail  = "member@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	cfg.StoreBackend = config.StoreBackendPostgres
	cfg.AuthProvider = config.AuthProviderLocal

	ctx := context.Background()
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	// The seed signs in as several users; none of that should replace the developer's saved session.
	a, err := app.New(ctx, cfg, logger, app.WithState(state.NewMemory()))
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer func() { _ = a.Close(ctx) }()

	if _, err := rolerepo.SeedDefaults(ctx, a.Store); err != nil {
		log.Fatalf("seed roles: %v", err)
	}

	existing, err := userrepo.NewStoreRepository(a.Store).GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	if _, err := a.Session.SignUp(ctx, devUserEmail, devPassword, devOrgName, "Dev User"); err != nil {
		log.Fatalf("create dev user: %v", err)
	}
	orgID := a.Tenancy.CurrentOrganizationID()
	if orgID == "" {
		log.Fatal("create org: dev user has no current organization")
	}

	inv, err := a.Tenancy.InviteTeamMember(ctx, memberEmail, roledomain.Member)
	if err != nil {
		log.Fatalf("invite member: %v", err)
	}

	client, err := a.Store.Insert(ctx, store.RelationClients, store.Row{
		"organization_id": orgID,
		"name":            "Pat Rivera",
		"email":           "pat.rivera@example.com",
		"phone":           "503-555-0142",
		"address":         "12 Elm St",
		"city":            "Portland",
		"state":           "OR",
		"zip_code":        "97201",
	})
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	q, err := a.Quotes.CreateQuote(ctx, quote.NewQuote{
		ClientID:    client.String("id"),
		ProjectName: "Front yard refresh",
		TaxRate:     decimal.RequireFromString("8.5"),
	})
	if err != nil {
		log.Fatalf("create quote: %v", err)
	}
	for _, it := range []quote.NewItem{
		{Type: quotedomain.ItemPlant, Name: "Japanese maple, 5 gal", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("89.99")},
		{Type: quotedomain.ItemMaterial, Name: "Hardwood mulch, cu yd", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("38.50")},
		{Type: quotedomain.ItemLabor, Name: "Planting crew, hours", Quantity: decimal.NewFromInt(6), UnitPrice: decimal.NewFromInt(65)},
	} {
		if _, err := a.Quotes.AddItem(ctx, q.ID, it); err != nil {
			log.Fatalf("create quote item %q: %v", it.Name, err)
		}
	}

	folder, err := a.Documents.CreateFolder(ctx, document.NewFolder{Name: "Operations", Description: "Crew procedures"})
	if err != nil {
		log.Fatalf("create folder: %v", err)
	}
	sop, err := a.Documents.CreateDocument(ctx, document.NewDocument{
		Title:    "Spring bed cleanup",
		FolderID: folder.ID,
		Content:  "1. Rake out leaves and debris.\n2. Edge beds.\n3. Apply 2 in. of mulch.",
	})
	if err != nil {
		log.Fatalf("create document: %v", err)
	}
	if _, err := a.Documents.PublishDocument(ctx, sop.ID); err != nil {
		log.Fatalf("publish document: %v", err)
	}

	if err := a.Session.SignOut(ctx); err != nil {
		log.Fatalf("sign out dev user: %v", err)
	}
	member, err := a.Session.SignUp(ctx, memberEmail, devPassword, "Member Sandbox", "Member User")
	if err != nil {
		log.Fatalf("create member user: %v", err)
	}
	if _, err := a.Tenancy.AcceptInvitation(ctx, inv.ID, member.ID); err != nil {
		log.Fatalf("accept invitation: %v", err)
	}
	if err := a.Session.SignOut(ctx); err != nil {
		log.Fatalf("sign out member: %v", err)
	}

	log.Printf("Seed complete: %s and %s (password %s) in %q, quote %s", devUserEmail, memberEmail, devPassword, devOrgName, q.QuoteNumber)
}
