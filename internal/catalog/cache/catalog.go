package cache

import (
	"context"

	"linkbot/internal/catalog"
	logx "linkbot/pkg/logx"
)

// Catalog is a *catalog.Store whose active category listing goes through a
// Cache. Every mutation that can change that listing invalidates it.
type Catalog struct {
	*catalog.Store
	cache Cache
	log   logx.Logger
}

func NewCatalog(store *catalog.Store, c Cache, log logx.Logger) *Catalog {
	if c == nil {
		c = Nop{}
	}
	return &Catalog{Store: store, cache: c, log: log}
}

// ListCategories serves onlyActive lookups from the cache. Cache errors fall
// back to the store.
func (c *Catalog) ListCategories(ctx context.Context, onlyActive bool) ([]catalog.Category, error) {
	if !onlyActive {
		return c.Store.ListCategories(ctx, false)
	}
	cats, ok, err := c.cache.Get(ctx)
	if err != nil {
		c.log.Warn("category cache read failed", logx.Err(err))
	}
	if ok {
		return cats, nil
	}
	cats, err = c.Store.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, cats); err != nil {
		c.log.Warn("category cache write failed", logx.Err(err))
	}
	return cats, nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.Warn("category cache invalidate failed", logx.Err(err))
	}
}

func (c *Catalog) AddCategory(ctx context.Context, name, emoji string, position int) (int64, error) {
	id, err := c.Store.AddCategory(ctx, name, emoji, position)
	if err == nil {
		c.invalidate(ctx)
	}
	return id, err
}

func (c *Catalog) UpdateCategory(ctx context.Context, id int64, name, emoji *string) error {
	err := c.Store.UpdateCategory(ctx, id, name, emoji)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Catalog) ToggleCategory(ctx context.Context, id int64) (bool, error) {
	active, err := c.Store.ToggleCategory(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return active, err
}

func (c *Catalog) DeleteCategory(ctx context.Context, id int64) error {
	err := c.Store.DeleteCategory(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

// Approved link counts are part of the cached listing.

func (c *Catalog) AddLink(ctx context.Context, l catalog.NewLink) (int64, error) {
	id, err := c.Store.AddLink(ctx, l)
	if err == nil && l.Status == catalog.StatusApproved {
		c.invalidate(ctx)
	}
	return id, err
}

func (c *Catalog) SetLinkStatus(ctx context.Context, id int64, status catalog.Status, reason *string, categoryID *int64) error {
	err := c.Store.SetLinkStatus(ctx, id, status, reason, categoryID)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Catalog) ModerateLink(ctx context.Context, id int64, status catalog.Status, reason *string, categoryID *int64) error {
	err := c.Store.ModerateLink(ctx, id, status, reason, categoryID)
	if err == nil && status == catalog.StatusApproved {
		c.invalidate(ctx)
	}
	return err
}

func (c *Catalog) UpdateLink(ctx context.Context, id int64, e catalog.LinkEdit) error {
	err := c.Store.UpdateLink(ctx, id, e)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Catalog) DeleteLink(ctx context.Context, id int64) error {
	err := c.Store.DeleteLink(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *Catalog) Close() error {
	err := c.cache.Close()
	if serr := c.Store.Close(); serr != nil {
		return serr
	}
	return err
}
