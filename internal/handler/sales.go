package handler

import (
	"net/http"

	"gestorpos/internal/apierror"
	"gestorpos/internal/dto"
	"gestorpos/internal/middleware"
	"gestorpos/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct{ svc service.SaleService }

func NewSalesHandler(svc service.SaleService) *SalesHandler { return &SalesHandler{svc: svc} }

// Balance godoc
// @Summary      Preview a cart
// @Description  Computes the cart balance and reconciles the payments without writing anything.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CartRequest true "Cart"
// @Success      200  {object} service.BalancePreview
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/sales/balance [post]
func (h *SalesHandler) Balance(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CartRequest
	if !bindAndValidate(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.Preview(req.ToCart(claims.Owner, claims.Operator())))
}

// Register godoc
// @Summary      Register a sale
// @Description  Settles a new sale in one transaction: stock, bank postings, receivable bill, linked entities and audit log.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CartRequest true "Cart"
// @Success      201  {object} dto.SettlementResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Failure      502  {object} apierror.APIError
// @Router       /v1/sales [post]
func (h *SalesHandler) Register(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CartRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req.ToCart(claims.Owner, claims.Operator()))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(res))
}

// Update godoc
// @Summary      Update a sale
// @Description  Resettles a sale from a full cart; only the differences reach the ledgers.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        ref  path     string          true "Sale id (uuid) or code"
// @Param        body body     dto.CartRequest true "Cart"
// @Success      200  {object} dto.SettlementResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/sales/{ref} [put]
func (h *SalesHandler) Update(c *gin.Context) {
	claims, ref, ok := claimsAndRef(c)
	if !ok {
		return
	}
	var req dto.CartRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.Update(c.Request.Context(), claims.Owner, ref, req.ToCart(claims.Owner, claims.Operator()))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// Cancel godoc
// @Summary      Cancel a sale
// @Description  Returns the stock, reverses the posted payments and cancels the receivable bill.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        ref  path     string true "Sale id (uuid) or code"
// @Success      200  {object} dto.SettlementResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/sales/{ref}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	claims, ref, ok := claimsAndRef(c)
	if !ok {
		return
	}
	res, err := h.svc.Cancel(c.Request.Context(), claims.Owner, ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// ChangeOperator godoc
// @Summary      Change the sale operator
// @Description  Reassigns the sale and its stock movements to another operator and records it in the audit log.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        ref  path     string                    true "Sale id (uuid) or code"
// @Param        body body     dto.ChangeOperatorRequest true "New operator"
// @Success      200  {object} dto.SettlementResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/sales/{ref}/operator [patch]
func (h *SalesHandler) ChangeOperator(c *gin.Context) {
	claims, ref, ok := claimsAndRef(c)
	if !ok {
		return
	}
	var req dto.ChangeOperatorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.ChangeOperator(c.Request.Context(), claims.Owner, ref, req.ToPerson())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// Get godoc
// @Summary      Get a sale
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        ref  path     string true "Sale id (uuid) or code"
// @Success      200  {object} model.Sale
// @Failure      404  {object} apierror.APIError
// @Router       /v1/sales/{ref} [get]
func (h *SalesHandler) Get(c *gin.Context) {
	claims, ref, ok := claimsAndRef(c)
	if !ok {
		return
	}
	sale, err := h.svc.Get(c.Request.Context(), claims.Owner, ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func requireClaims(c *gin.Context) (*middleware.JWTClaims, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
		return nil, false
	}
	return claims, true
}

func claimsAndRef(c *gin.Context) (*middleware.JWTClaims, service.SaleRef, bool) {
	claims, ok := requireClaims(c)
	if !ok {
		return nil, service.SaleRef{}, false
	}
	ref, err := service.ParseSaleRef(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return nil, service.SaleRef{}, false
	}
	return claims, ref, true
}

func toResponse(res *service.SettlementResult) dto.SettlementResponse {
	return dto.NewSettlementResponse(res.SaleID, res.Code, res.RegisterDate, res.Status, res.Concluded)
}
