package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"guardians-shop/internal/domain"
)

//go:embed schema.sql
var schema string

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SeedProducts inserts products that are not in the catalog yet.
func SeedProducts(ctx context.Context, db *sql.DB, products []domain.Product) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range products {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO products (sku, name, description, price, category, rcon_command)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sku) DO NOTHING`,
			p.SKU, p.Name, p.Description, p.Price, p.Category, p.RconCommand,
		)
		if err != nil {
			return 0, fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DefaultProducts is the launch catalog.
var DefaultProducts = []domain.Product{
	vipToken("vip_primitive", "VIP Primitive", "Acceso básico con beneficios de inicio", 5.99, "Primitive"),
	vipToken("vip_tambaleante", "VIP Tambaleante", "Paquete intermedio con ventajas PvP", 12.99, "Wobbling"),
	vipToken("vip_aprendiz", "VIP Aprendiz", "Ideal para jugadores que suben de nivel", 19.99, "Apprentice"),
	vipToken("vip_oficial", "VIP Oficial", "Rango oficial con perks permanentes", 29.99, "Official"),
	vipToken("vip_mastercraft", "VIP Mastercraft", "Artículos Tek y materiales de construcción", 44.99, "Mastercraft"),
	vipToken("vip_ascendente", "VIP Ascendente", "Máximo poder: dinos ascendentes y perks únicos", 59.99, "Ascendant"),
	kit("kit_starter", "Kit Starter", "Recursos básicos para comenzar tu aventura", 3.99, "1 100"),
	kit("kit_herramientas", "Kit Herramientas Pro", "Herramientas de calidad para trabajar más rápido", 7.99, "19 1"),
	kit("kit_sobrevivencia", "Kit Sobrevivencia", "Todo lo necesario para sobrevivir en el árido", 9.99, "266 300"),
	kit("kit_construccion", "Kit Construcción", "Materiales para construir estructuras avanzadas", 15.99, "335 500"),
	kit("kit_combate", "Kit Combate Elite", "Armas y armaduras de combate supremo", 24.99, "314 1"),
}

// kit grants items by numeric id; itemQty is "<item id> <quantity>".
func kit(sku, name, desc string, price float64, itemQty string) domain.Product {
	return domain.Product{
		SKU:         sku,
		Name:        name,
		Description: desc,
		Price:       price,
		Category:    "kits",
		RconCommand: fmt.Sprintf("giveitemnum %s %s 1 0", domain.PlayerPlaceholder, itemQty),
	}
}

func vipToken(sku, name, desc string, price float64, tier string) domain.Product {
	item := "PrimalItemConsumable_VIPToken_" + tier
	return domain.Product{
		SKU:         sku,
		Name:        name,
		Description: desc,
		Price:       price,
		Category:    "vips",
		RconCommand: fmt.Sprintf(`giveitems %s "Blueprint'/Game/PrimalItem/Consumables/%s.%s'" 1 1 false`, domain.PlayerPlaceholder, item, item),
	}
}
