package file

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

// InventoryRepository keeps inventory snapshots as JSON documents, one directory per entity.
type InventoryRepository struct {
	products  collection
	stores    collection
	movements collection
	users     collection
	mu        sync.RWMutex
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(root string) *InventoryRepository {
	return &InventoryRepository{
		products:  newCollection(root, "products"),
		stores:    newCollection(root, "stores"),
		movements: newCollection(root, "movements"),
		users:     newCollection(root, "users"),
	}
}

func readEntity[T any](c collection, id string, notFound error) (*T, error) {
	var entity T

	err := c.read(id, &entity)
	if isNotExist(err) {
		return nil, fmt.Errorf("%w: %s", notFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &entity, nil
}

func (r *InventoryRepository) ProductByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readEntity[models.Product](r.products, id, persistence.ErrProductNotFound)
}

func (r *InventoryRepository) StoreByID(_ context.Context, id string) (*models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readEntity[models.Store](r.stores, id, persistence.ErrStoreNotFound)
}

func (r *InventoryRepository) MovementByID(_ context.Context, id string) (*models.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readEntity[models.Movement](r.movements, id, persistence.ErrMovementNotFound)
}

func (r *InventoryRepository) UserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return readEntity[models.User](r.users, id, persistence.ErrUserNotFound)
}

// ProductsOutsideStockRange scans every product file.
func (r *InventoryRepository) ProductsOutsideStockRange(_ context.Context) ([]*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.products.ids()
	if err != nil {
		return nil, err
	}

	products := make([]*models.Product, 0)

	for _, id := range ids {
		product, err := readEntity[models.Product](r.products, id, persistence.ErrProductNotFound)
		if err != nil {
			return nil, err
		}

		if persistence.OutsideStockRange(product) {
			products = append(products, product)
		}
	}

	return products, nil
}

func (r *InventoryRepository) SaveProduct(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.products.write(product.ID, product)
}

func (r *InventoryRepository) SaveStore(_ context.Context, store *models.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stores.write(store.ID, store)
}

func (r *InventoryRepository) SaveMovement(_ context.Context, movement *models.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.movements.write(movement.ID, movement)
}

func (r *InventoryRepository) SaveUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.users.write(user.ID, user)
}
