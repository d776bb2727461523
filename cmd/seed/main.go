// Command seed loads a demo tenant and prints access tokens for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/app"
	"github.com/odyssey-erp/odyssey-b2b/internal/auth"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

func main() {
	tenantID := flag.Int64("tenant", 1, "tenant to seed")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying schema...")
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var retailerID int64
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		fmt.Println("→ Seeding suppliers and products...")
		if err := seedCatalog(ctx, tx, *tenantID); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		fmt.Println("→ Seeding retailers...")
		id, err := seedRetailers(ctx, tx, *tenantID)
		if err != nil {
			return fmt.Errorf("seed retailers: %w", err)
		}
		retailerID = id
		fmt.Println("→ Seeding message templates...")
		if err := seedTemplates(ctx, tx, *tenantID); err != nil {
			return fmt.Errorf("seed templates: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)
	for _, actor := range []shared.Actor{
		{TenantID: *tenantID, UserID: 1, Role: shared.RoleAdmin},
		{TenantID: *tenantID, UserID: 2, Role: shared.RoleCollector},
		{TenantID: *tenantID, UserID: 3, Role: shared.RoleRetailer, RetailerID: retailerID},
	} {
		raw, err := tokens.Issue(actor, *tokenTTL)
		if err != nil {
			log.Fatalf("issue %s token: %v", actor.Role, err)
		}
		fmt.Printf("%-9s %s\n", actor.Role, raw)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedCatalog(ctx context.Context, tx pgx.Tx, tenantID int64) error {
	suppliers := []struct {
		code, name, category string
		commission           float64
		products             []struct {
			sku, name string
			price     float64
			stock     int
		}
	}{
		{code: "SUP-001", name: "Nusantara Beverages", category: "beverages", commission: 5, products: []struct {
			sku, name string
			price     float64
			stock     int
		}{
			{"BEV-COLA-24", "Cola 24 pack", 18.50, 400},
			{"BEV-WATER-12", "Mineral water 12 pack", 6.75, 900},
		}},
		{code: "SUP-002", name: "Harvest Dry Goods", category: "groceries", commission: 7.5, products: []struct {
			sku, name string
			price     float64
			stock     int
		}{
			{"DRY-RICE-25", "Rice 25kg", 32.00, 150},
			{"DRY-SUGAR-10", "Sugar 10kg", 11.20, 220},
			{"DRY-OIL-5", "Cooking oil 5L", 9.95, 0},
		}},
	}
	for _, s := range suppliers {
		var supplierID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO suppliers (tenant_id, code, name, category, commission_rate)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, tenantID, s.code, s.name, s.category, s.commission).Scan(&supplierID)
		if err != nil {
			return err
		}
		for _, p := range s.products {
			_, err := tx.Exec(ctx, `
				INSERT INTO products (tenant_id, supplier_id, sku, name, unit_price, stock)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (tenant_id, sku) DO NOTHING`, tenantID, supplierID, p.sku, p.name, p.price, p.stock)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedRetailers(ctx context.Context, tx pgx.Tx, tenantID int64) (int64, error) {
	retailers := []struct {
		code, name, email, phone, city, status string
		creditLimit, balance                   float64
	}{
		{"RET-001", "Sinar Jaya Mart", "owner@sinarjaya.test", "+62811000001", "Bandung", "active", 5000, 0},
		{"RET-002", "Toko Makmur", "hello@makmur.test", "+62811000002", "Jakarta", "active", 2000, -350},
		{"RET-003", "Warung Sederhana", "", "+62811000003", "Bogor", "suspended", 1000, -1200},
	}
	var firstID int64
	for i, r := range retailers {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO retailers (tenant_id, code, name, email, phone, city, status, credit_limit, balance)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, tenantID, r.code, r.name, r.email, r.phone, r.city, r.status, r.creditLimit, r.balance).Scan(&id)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			firstID = id
		}
	}
	return firstID, nil
}

func seedTemplates(ctx context.Context, tx pgx.Tx, tenantID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO message_templates (tenant_id, name, channels, subject, body)
		VALUES
			($1, 'payment-reminder', ARRAY['email','sms','in_app'], 'Balance reminder',
			 'Hello {{.RetailerName}}, your outstanding balance is {{.Balance}}.'),
			($1, 'new-stock', ARRAY['in_app','push'], 'New stock available',
			 'Fresh stock has arrived, {{.RetailerName}}. Order before it runs out.')
		ON CONFLICT (tenant_id, name) DO NOTHING`, tenantID)
	return err
}
