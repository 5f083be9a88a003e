package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openmerce/promo-engine/internal/domain/discount"
)

type evaluateRequest struct {
	CurrencyCode string      `json:"currencyCode"`
	ChannelID    string      `json:"channelId"`
	Code         string      `json:"code"`
	UserID       string      `json:"userId"`
	GroupIDs     []string    `json:"groupIds"`
	Now          *time.Time  `json:"now"`
	Cart         cartRequest `json:"cart"`
}

type cartRequest struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Items    []itemRequest   `json:"items"`
}

type itemRequest struct {
	ProductID     string          `json:"productId"`
	CategoryIDs   []string        `json:"categoryIds"`
	CollectionIDs []string        `json:"collectionIds"`
	BrandID       string          `json:"brandId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request, redeem bool) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ec := toEvaluationContext(&req)
	res, err := h.engine.Evaluate(r.Context(), ec, redeem)
	if err != nil {
		var verr *discount.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		zctx.From(r.Context()).Error("evaluation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeResult(w, res)
}

func toEvaluationContext(req *evaluateRequest) *discount.EvaluationContext {
	items := make([]discount.CartItem, len(req.Cart.Items))
	for i, it := range req.Cart.Items {
		items[i] = discount.CartItem{
			ProductID:     it.ProductID,
			CategoryIDs:   it.CategoryIDs,
			CollectionIDs: it.CollectionIDs,
			BrandID:       it.BrandID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
		}
	}

	ec := &discount.EvaluationContext{
		CurrencyCode: req.CurrencyCode,
		ChannelID:    req.ChannelID,
		Code:         req.Code,
		UserID:       req.UserID,
		GroupIDs:     req.GroupIDs,
		Subtotal:     req.Cart.Subtotal,
		Items:        items,
	}
	if req.Now != nil {
		ec.Now = *req.Now
	}
	return ec
}

func writeResult(w http.ResponseWriter, res *discount.EvaluationResult) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("discountTotal")
	e.Float64(res.DiscountTotal.InexactFloat64())
	e.FieldStart("freeShipping")
	e.Bool(res.FreeShipping)
	e.FieldStart("codeStatus")
	e.Str(string(res.CodeStatus))
	e.FieldStart("appliedDiscounts")
	e.ArrStart()
	for _, a := range res.AppliedDiscounts {
		e.ObjStart()
		e.FieldStart("discountId")
		e.Str(a.DiscountID)
		e.FieldStart("amount")
		e.Float64(a.Amount.InexactFloat64())
		e.FieldStart("scope")
		e.Str(a.Scope)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
