package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/repository"
)

// RulesHandler administers the code→sheet and CNPJ→UO mapping rules.
type RulesHandler struct {
	store *repository.RuleStore
}

func NewRulesHandler(store *repository.RuleStore) *RulesHandler {
	return &RulesHandler{store: store}
}

func (h *RulesHandler) ListCodes(c *gin.Context) {
	rules, err := h.store.ListCodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codigos": rules})
}

func (h *RulesHandler) AddCode(c *gin.Context) {
	var req dto.CodeRule
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: http.StatusBadRequest})
		return
	}
	if err := h.store.AddCode(c.Request.Context(), req.Codigo, req.Aba); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Code: http.StatusUnprocessableEntity})
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *RulesHandler) RemoveCode(c *gin.Context) {
	err := h.store.RemoveCode(c.Request.Context(), c.Param("codigo"))
	if errors.Is(err, repository.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: http.StatusNotFound})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RulesHandler) ListCNPJs(c *gin.Context) {
	rules, err := h.store.ListCNPJs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cnpjs": rules})
}

func (h *RulesHandler) AddCNPJ(c *gin.Context) {
	var req dto.CNPJRule
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: http.StatusBadRequest})
		return
	}
	if err := h.store.AddCNPJ(c.Request.Context(), req.CNPJ, req.UO); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Code: http.StatusUnprocessableEntity})
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *RulesHandler) RemoveCNPJ(c *gin.Context) {
	err := h.store.RemoveCNPJ(c.Request.Context(), c.Param("cnpj"))
	if errors.Is(err, repository.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: http.StatusNotFound})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}
