package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pluginverse/storefront/pkg/errdefs"
	"github.com/pluginverse/storefront/pkg/storage"
)

// Service provides catalog operations
type Service struct {
	db    *sql.DB
	blobs storage.BlobStore
}

// NewService creates a new catalog service
func NewService(db *sql.DB, blobs storage.BlobStore) *Service {
	return &Service{db: db, blobs: blobs}
}

// Create adds a new catalog entry with a zero download counter, storing the
// uploaded logo and artifact in the blob store
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Plugin, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("plugin name is required")
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("price must not be negative: %w", errdefs.ErrInvalidAmount)
	}

	plugin := &Plugin{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Downloads:   0,
		CreatedAt:   time.Now().UTC(),
	}
	plugin.UpdatedAt = plugin.CreatedAt

	plugin.LogoRef = req.LogoRef
	plugin.ArtifactRef = req.ArtifactRef

	// Blobs stored here are discarded again if the insert fails; adopted
	// references are left alone
	var uploaded []string
	var err error
	if req.Logo != nil {
		plugin.LogoRef, err = s.blobs.Put(ctx, "logos", req.Logo.Filename, req.Logo.ContentType, req.Logo.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store logo: %w", err)
		}
		uploaded = append(uploaded, plugin.LogoRef)
	}
	if req.Artifact != nil {
		plugin.ArtifactRef, err = s.blobs.Put(ctx, "artifacts", req.Artifact.Filename, req.Artifact.ContentType, req.Artifact.Content)
		if err != nil {
			for _, ref := range uploaded {
				s.discardBlob(ctx, ref)
			}
			return nil, fmt.Errorf("failed to store artifact: %w", err)
		}
		uploaded = append(uploaded, plugin.ArtifactRef)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plugins (id, name, description, price, downloads, logo_ref, artifact_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)`,
		plugin.ID, plugin.Name, plugin.Description, plugin.Price,
		plugin.LogoRef, plugin.ArtifactRef, plugin.CreatedAt, plugin.UpdatedAt,
	)
	if err != nil {
		for _, ref := range uploaded {
			s.discardBlob(ctx, ref)
		}
		return nil, fmt.Errorf("failed to create plugin: %w", err)
	}

	return plugin, nil
}

// Get retrieves a single catalog entry
func (s *Service) Get(ctx context.Context, id string) (*Plugin, error) {
	return s.GetTx(ctx, s.db, id)
}

// GetTx runs Get against a caller-owned transaction
func (s *Service) GetTx(ctx context.Context, q storage.DBTX, id string) (*Plugin, error) {
	var p Plugin
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, price, downloads, logo_ref, artifact_ref, created_at, updated_at
		 FROM plugins WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Downloads,
		&p.LogoRef, &p.ArtifactRef, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plugin %s: %w", id, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plugin: %w", err)
	}
	return &p, nil
}

// List returns catalog entries matching the request filters
func (s *Service) List(ctx context.Context, req *ListRequest) ([]*Plugin, error) {
	query := `SELECT id, name, description, price, downloads, logo_ref, artifact_ref, created_at, updated_at
		FROM plugins WHERE 1=1`

	args := []interface{}{}
	argCount := 1

	if req.Search != "" {
		query += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", argCount, argCount+1)
		pattern := "%" + strings.ToLower(req.Search) + "%"
		args = append(args, pattern, pattern)
		argCount += 2
	}

	sortBy := "created_at"
	switch req.SortBy {
	case "downloads":
		sortBy = "downloads"
	case "price":
		sortBy = "price"
	}
	sortOrder := "DESC"
	if req.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 200 {
		req.Limit = 200
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}
	defer rows.Close()

	plugins := []*Plugin{}
	for rows.Next() {
		var p Plugin
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Downloads,
			&p.LogoRef, &p.ArtifactRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		plugins = append(plugins, &p)
	}
	return plugins, rows.Err()
}

// Update applies a partial update to a catalog entry. Replaced logo and
// artifact blobs are removed from the blob store after the row is updated.
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Plugin, error) {
	plugin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("plugin name is required")
		}
		plugin.Name = *req.Name
	}
	if req.Description != nil {
		plugin.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("price must not be negative: %w", errdefs.ErrInvalidAmount)
		}
		plugin.Price = *req.Price
	}

	var staleRefs []string
	if req.Logo != nil {
		ref, err := s.blobs.Put(ctx, "logos", req.Logo.Filename, req.Logo.ContentType, req.Logo.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store logo: %w", err)
		}
		staleRefs = append(staleRefs, plugin.LogoRef)
		plugin.LogoRef = ref
	}
	if req.Artifact != nil {
		ref, err := s.blobs.Put(ctx, "artifacts", req.Artifact.Filename, req.Artifact.ContentType, req.Artifact.Content)
		if err != nil {
			if req.Logo != nil {
				s.discardBlob(ctx, plugin.LogoRef)
			}
			return nil, fmt.Errorf("failed to store artifact: %w", err)
		}
		staleRefs = append(staleRefs, plugin.ArtifactRef)
		plugin.ArtifactRef = ref
	}
	plugin.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE plugins SET name = $1, description = $2, price = $3, logo_ref = $4, artifact_ref = $5, updated_at = $6
		 WHERE id = $7`,
		plugin.Name, plugin.Description, plugin.Price,
		plugin.LogoRef, plugin.ArtifactRef, plugin.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update plugin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("plugin %s: %w", id, errdefs.ErrNotFound)
	}

	for _, ref := range staleRefs {
		s.discardBlob(ctx, ref)
	}
	return plugin, nil
}

// Delete removes a catalog entry and its stored blobs. Existing entitlements
// to the plugin are left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	plugin, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM plugins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plugin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plugin %s: %w", id, errdefs.ErrNotFound)
	}

	s.discardBlob(ctx, plugin.LogoRef)
	s.discardBlob(ctx, plugin.ArtifactRef)
	return nil
}

// IncrementDownloadsTx bumps the download counter by one inside a
// caller-owned transaction. Only the purchase flow calls this.
func (s *Service) IncrementDownloadsTx(ctx context.Context, q storage.DBTX, id string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE plugins SET downloads = downloads + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read increment result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plugin %s: %w", id, errdefs.ErrNotFound)
	}
	return nil
}

// OpenBlob opens the content behind a stored reference for streaming to a
// client
func (s *Service) OpenBlob(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.blobs.Get(ctx, ref)
}

// Stats returns the catalog size and total download count
func (s *Service) Stats(ctx context.Context) (plugins int64, downloads int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(downloads), 0) FROM plugins`,
	).Scan(&plugins, &downloads)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	return plugins, downloads, nil
}

func (s *Service) discardBlob(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	// Best effort; an orphaned blob is preferable to failing the operation
	_ = s.blobs.Delete(ctx, ref)
}
