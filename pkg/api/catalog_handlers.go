package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pluginverse/storefront/pkg/audit"
	"github.com/pluginverse/storefront/pkg/catalog"
	"github.com/pluginverse/storefront/pkg/httputil"
	"github.com/pluginverse/storefront/pkg/middleware"
	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/storage"
)

const maxUploadBytes = 64 << 20

// CatalogHandlers serves public browsing and the admin catalog mutations
type CatalogHandlers struct {
	catalog Catalog
	blobs   storage.BlobStore
	audit   *audit.Store
	logger  *observability.Logger
}

// NewCatalogHandlers creates a new CatalogHandlers
func NewCatalogHandlers(cat Catalog, blobs storage.BlobStore, auditStore *audit.Store, logger *observability.Logger) *CatalogHandlers {
	return &CatalogHandlers{catalog: cat, blobs: blobs, audit: auditStore, logger: logger}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(public, admin *mux.Router) {
	public.HandleFunc("/plugins", h.listPlugins).Methods("GET")
	public.HandleFunc("/plugins/{id}", h.getPlugin).Methods("GET")
	public.HandleFunc("/plugins/{id}/logo", h.getLogo).Methods("GET")

	admin.HandleFunc("/plugins", h.createPlugin).Methods("POST")
	admin.HandleFunc("/plugins/{id}", h.updatePlugin).Methods("PUT")
	admin.HandleFunc("/plugins/{id}", h.deletePlugin).Methods("DELETE")
}

func (h *CatalogHandlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	limit, _ := httputil.ParseQueryInt(r, "limit", 0)
	offset, _ := httputil.ParseQueryInt(r, "offset", 0)

	req := &catalog.ListRequest{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sort"),
		SortOrder: r.URL.Query().Get("order"),
		Limit:     limit,
		Offset:    offset,
	}

	plugins, err := h.catalog.List(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, plugins)
}

func (h *CatalogHandlers) getPlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	plugin, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	httputil.WriteSuccess(w, plugin)
}

func (h *CatalogHandlers) getLogo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	plugin, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	if plugin.LogoRef == "" {
		httputil.WriteNotFoundError(w, "plugin has no logo")
		return
	}

	h.streamBlob(w, r, plugin.LogoRef, "")
}

func (h *CatalogHandlers) createPlugin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseCreateRequest(w, r)
	if !ok {
		return
	}

	plugin, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	h.record(r, audit.ActionPluginCreate, plugin.ID, fmt.Sprintf("name=%s price=%d", plugin.Name, plugin.Price))
	httputil.WriteCreated(w, plugin)
}

func (h *CatalogHandlers) updatePlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	req, ok := h.parseUpdateRequest(w, r)
	if !ok {
		return
	}

	plugin, err := h.catalog.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	h.record(r, audit.ActionPluginUpdate, plugin.ID, "")
	httputil.WriteSuccess(w, plugin)
}

func (h *CatalogHandlers) deletePlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}

	h.record(r, audit.ActionPluginDelete, id, "")
	httputil.WriteNoContent(w)
}

func (h *CatalogHandlers) parseCreateRequest(w http.ResponseWriter, r *http.Request) (*catalog.CreateRequest, bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Price       int64  `json:"price"`
			LogoRef     string `json:"logo_ref"`
			ArtifactRef string `json:"artifact_ref"`
		}
		if !httputil.ParseJSONOrError(w, r, &body) {
			return nil, false
		}
		if !httputil.RequireNonEmpty(w, body.Name, "name") {
			return nil, false
		}
		return &catalog.CreateRequest{
			Name:        body.Name,
			Description: body.Description,
			Price:       body.Price,
			LogoRef:     body.LogoRef,
			ArtifactRef: body.ArtifactRef,
		}, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteValidationError(w, "invalid multipart form")
		return nil, false
	}

	name := r.FormValue("name")
	if !httputil.RequireNonEmpty(w, name, "name") {
		return nil, false
	}

	price := int64(0)
	if raw := r.FormValue("price"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteValidationError(w, "price must be an integer")
			return nil, false
		}
		price = parsed
	}

	req := &catalog.CreateRequest{
		Name:        name,
		Description: r.FormValue("description"),
		Price:       price,
	}
	req.Logo = formUpload(r, "logo")
	req.Artifact = formUpload(r, "artifact")
	return req, true
}

func (h *CatalogHandlers) parseUpdateRequest(w http.ResponseWriter, r *http.Request) (*catalog.UpdateRequest, bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			Price       *int64  `json:"price"`
		}
		if !httputil.ParseJSONOrError(w, r, &body) {
			return nil, false
		}
		return &catalog.UpdateRequest{
			Name:        body.Name,
			Description: body.Description,
			Price:       body.Price,
		}, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteValidationError(w, "invalid multipart form")
		return nil, false
	}

	req := &catalog.UpdateRequest{}
	if _, ok := r.MultipartForm.Value["name"]; ok {
		name := r.FormValue("name")
		req.Name = &name
	}
	if _, ok := r.MultipartForm.Value["description"]; ok {
		description := r.FormValue("description")
		req.Description = &description
	}
	if _, ok := r.MultipartForm.Value["price"]; ok {
		price, err := strconv.ParseInt(r.FormValue("price"), 10, 64)
		if err != nil {
			httputil.WriteValidationError(w, "price must be an integer")
			return nil, false
		}
		req.Price = &price
	}
	req.Logo = formUpload(r, "logo")
	req.Artifact = formUpload(r, "artifact")
	return req, true
}

func (h *CatalogHandlers) streamBlob(w http.ResponseWriter, r *http.Request, ref, downloadName string) {
	rc, err := h.blobs.Get(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, observability.FromContext(r.Context()), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if downloadName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	if _, err := io.Copy(w, rc); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("blob stream interrupted")
	}
}

func (h *CatalogHandlers) record(r *http.Request, action audit.Action, targetID, detail string) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		return
	}
	if err := h.audit.Record(r.Context(), identity.AccountID, action, "plugin", targetID, detail); err != nil {
		h.logger.WithError(err).Warn("failed to record audit entry")
	}
}

func formUpload(r *http.Request, field string) *catalog.Upload {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil
	}
	return &catalog.Upload{
		Filename:    path.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}
}
