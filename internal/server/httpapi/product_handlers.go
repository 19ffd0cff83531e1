package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/arsansys/siva/internal/server/models"
)

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceCents  int64  `json:"priceCents"`
	Stock       int    `json:"stock"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Stock       int       `json:"stock"`
	SellerID    string    `json:"sellerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		SellerID:    p.SellerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func writeProducts(w http.ResponseWriter, products []*models.Product) {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeProducts(w, products)
}

func (s *Server) handleListProductsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.ListByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeProducts(w, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	principal, _ := PrincipalFrom(r.Context())

	created, err := s.products.Create(r.Context(), &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		SellerID:    principal.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(created))
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	id := mux.Vars(r)["id"]

	principal, _ := PrincipalFrom(r.Context())
	existing, err := s.products.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	// sellers manage their own listings only
	if principal.Role == models.RoleSeller && existing.SellerID != principal.UserID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Category = req.Category
	existing.PriceCents = req.PriceCents
	existing.Stock = req.Stock

	if err := s.products.Update(r.Context(), existing); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(existing))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	principal, _ := PrincipalFrom(r.Context())
	existing, err := s.products.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if principal.Role == models.RoleSeller && existing.SellerID != principal.UserID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	if err := s.products.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
