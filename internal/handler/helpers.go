package handler

import (
	"errors"
	"net/http"
	"reflect"

	"gestorpos/internal/apierror"
	"gestorpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as a float so min/gte tags work on money fields.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags. On false
// the response is already written.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	var (
		verr     *service.ValidationError
		conflict *service.ConflictError
		stage    *service.StageError
	)
	switch {
	case errors.As(err, &verr):
		fields := map[string]string{}
		if verr.Field != "" {
			fields[verr.Field] = verr.Msg
		}
		c.JSON(http.StatusUnprocessableEntity, &apierror.ValidationError{Detail: verr.Error(), Fields: fields})
	case errors.Is(err, service.ErrSaleNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.As(err, &conflict):
		log.Warn().Err(err).Str("sqlstate", conflict.SQLState).Msg("settlement commit rejected")
		msg := "the sale could not be saved"
		if conflict.Concurrent() {
			msg = "the sale was changed concurrently, reload and try again"
		}
		c.JSON(http.StatusConflict, apierror.New(msg))
	case errors.As(err, &stage):
		log.Error().Err(stage.Err).Str("stage", stage.Stage).Msg("settlement stage failed")
		c.JSON(http.StatusBadGateway, apierror.New("ledger "+stage.Stage+" rejected the sale"))
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}
