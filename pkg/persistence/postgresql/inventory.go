package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

const productColumns = `id, store_id, name, sku, stock_quantity, min_stock, max_stock, unit_price`

// InventoryRepository reads inventory snapshots from the shared inventory tables.
type InventoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sql.DB, logger *slog.Logger) *InventoryRepository {
	return &InventoryRepository{db: db, logger: logger}
}

func notFound(err, sentinel error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}

	return err
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		product models.Product
		sku     sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.StoreID,
		&product.Name,
		&sku,
		&product.StockQuantity,
		&product.MinStock,
		&product.MaxStock,
		&product.UnitPrice,
	)
	if err != nil {
		return nil, err
	}

	product.SKU = sku.String

	return &product, nil
}

func (r *InventoryRepository) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, persistence.ErrProductNotFound, id)
	}

	return product, nil
}

func (r *InventoryRepository) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	var (
		store        models.Store
		email, phone sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `SELECT id, name, email, phone FROM stores WHERE id = $1`, id).
		Scan(&store.ID, &store.Name, &email, &phone)
	if err != nil {
		return nil, notFound(err, persistence.ErrStoreNotFound, id)
	}

	store.Email = email.String
	store.Phone = phone.String

	return &store, nil
}

func (r *InventoryRepository) MovementByID(ctx context.Context, id string) (*models.Movement, error) {
	var (
		movement     models.Movement
		movementType string
		createdBy    sql.NullString
	)

	query := `
		SELECT id, store_id, product_id, type, quantity, unit_cost, created_by, created_at
		FROM movements
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&movement.ID,
		&movement.StoreID,
		&movement.ProductID,
		&movementType,
		&movement.Quantity,
		&movement.UnitCost,
		&createdBy,
		&movement.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, persistence.ErrMovementNotFound, id)
	}

	movement.Type = models.MovementType(movementType)
	movement.CreatedBy = createdBy.String

	return &movement, nil
}

func (r *InventoryRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	var (
		user  models.User
		email sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &email)
	if err != nil {
		return nil, notFound(err, persistence.ErrUserNotFound, id)
	}

	user.Email = email.String

	return &user, nil
}

// ProductsOutsideStockRange returns products below MinStock or above a positive MaxStock.
func (r *InventoryRepository) ProductsOutsideStockRange(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE stock_quantity < min_stock
		   OR (max_stock > 0 AND stock_quantity > max_stock)
		ORDER BY store_id, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products outside stock range: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	products := make([]*models.Product, 0)

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		products = append(products, product)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (r *InventoryRepository) SaveProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			stock_quantity = EXCLUDED.stock_quantity,
			min_stock = EXCLUDED.min_stock,
			max_stock = EXCLUDED.max_stock,
			unit_price = EXCLUDED.unit_price
	`

	_, err := r.db.ExecContext(ctx, query,
		product.ID, product.StoreID, product.Name, nullString(product.SKU),
		product.StockQuantity, product.MinStock, product.MaxStock, product.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", product.ID, err)
	}

	return nil
}

func (r *InventoryRepository) SaveStore(ctx context.Context, store *models.Store) error {
	query := `
		INSERT INTO stores (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
	`

	_, err := r.db.ExecContext(ctx, query, store.ID, store.Name, nullString(store.Email), nullString(store.Phone))
	if err != nil {
		return fmt.Errorf("failed to save store %s: %w", store.ID, err)
	}

	return nil
}

func (r *InventoryRepository) SaveMovement(ctx context.Context, movement *models.Movement) error {
	query := `
		INSERT INTO movements (id, store_id, product_id, type, quantity, unit_cost, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	createdAt := movement.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		movement.ID, movement.StoreID, movement.ProductID, string(movement.Type),
		movement.Quantity, movement.UnitCost, nullString(movement.CreatedBy), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save movement %s: %w", movement.ID, err)
	}

	return nil
}

func (r *InventoryRepository) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, nullString(user.Email))
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}

	return nil
}
