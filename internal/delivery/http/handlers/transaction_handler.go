package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/http/dto/transaction/request"
	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/http/dto/transaction/response"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
	transactiondto "github.com/LavaJover/shvark-mpesa-service/internal/usecase/dto/transaction"
	"github.com/LavaJover/shvark-mpesa-service/internal/usecase/transaction"
	"github.com/gin-gonic/gin"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotent-Replay"
)

type AuditStatsProvider interface {
	Stats() logger.AuditStats
}

type TransactionHandler struct {
	uc    transaction.TransactionUsecase
	audit AuditStatsProvider
}

func NewTransactionHandler(uc transaction.TransactionUsecase, audit AuditStatsProvider) *TransactionHandler {
	return &TransactionHandler{uc: uc, audit: audit}
}

func (h *TransactionHandler) CreateC2BPayment(c *gin.Context) {
	h.submitPayment(c, domain.OpC2BPayment)
}

func (h *TransactionHandler) CreateB2CPayment(c *gin.Context) {
	h.submitPayment(c, domain.OpB2CPayment)
}

func (h *TransactionHandler) CreateB2BPayment(c *gin.Context) {
	h.submitPayment(c, domain.OpB2BPayment)
}

func (h *TransactionHandler) submitPayment(c *gin.Context, op domain.Operation) {
	var req request.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.uc.Submit(c.Request.Context(), &transactiondto.SubmitInput{
		Operation:           op,
		IdempotencyKey:      idempotencyKey(c, req.ThirdPartyReference),
		ClientReference:     req.TransactionReference,
		CustomerIdentifier:  req.CustomerMSISDN,
		Amount:              req.Amount,
		ServiceProviderCode: req.ServiceProviderCode,
		ReceiverPartyCode:   req.ReceiverPartyCode,
		CallbackURL:         req.CallbackURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutput(c, out)
}

func (h *TransactionHandler) QueryTransactionStatus(c *gin.Context) {
	var req request.TransactionStatusQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.uc.Submit(c.Request.Context(), &transactiondto.SubmitInput{
		Operation:           domain.OpQueryTransactionStatus,
		IdempotencyKey:      idempotencyKey(c, req.ThirdPartyReference),
		ClientReference:     req.QueryReference,
		ServiceProviderCode: req.ServiceProviderCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutput(c, out)
}

func (h *TransactionHandler) QueryCustomerName(c *gin.Context) {
	var req request.CustomerNameQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.uc.Submit(c.Request.Context(), &transactiondto.SubmitInput{
		Operation:           domain.OpQueryCustomerName,
		IdempotencyKey:      idempotencyKey(c, req.ThirdPartyReference),
		CustomerIdentifier:  req.CustomerMSISDN,
		ServiceProviderCode: req.ServiceProviderCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutput(c, out)
}

func (h *TransactionHandler) ReverseTransaction(c *gin.Context) {
	var req request.ReversalRequest
	// an empty body reverses the full amount
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	out, err := h.uc.Reverse(c.Request.Context(), &transactiondto.ReverseInput{
		OriginalTransactionID: c.Param("id"),
		IdempotencyKey:        idempotencyKey(c, req.ThirdPartyReference),
		Amount:                req.Amount,
		CallbackURL:           req.CallbackURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOutput(c, out)
}

// HandleCallback is the provider webhook. Orphans and replays are acknowledged
// with 200 so the provider stops redelivering.
func (h *TransactionHandler) HandleCallback(c *gin.Context) {
	var payload domain.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.uc.ReconcileCallback(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := response.CallbackResponse{Outcome: string(out.Outcome)}
	if out.Transaction != nil {
		tx := response.FromTransaction(out.Transaction)
		resp.Transaction = &tx
	}
	c.JSON(http.StatusOK, response.Envelope{Success: true, Data: resp, Message: "callback " + string(out.Outcome)})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tx, err := h.uc.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Envelope{Success: true, Data: response.FromTransaction(tx)})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	out, err := h.uc.ListTransactions(c.Request.Context(), domain.TransactionFilter{
		Status:          domain.TransactionStatus(strings.ToLower(c.Query("status"))),
		Type:            domain.TransactionType(strings.ToUpper(c.Query("type"))),
		ClientReference: c.Query("client_reference"),
		Page:            page,
		Limit:           limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Envelope{Success: true, Data: response.FromList(out)})
}

func (h *TransactionHandler) AuditStats(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, response.Envelope{
			Error: &response.ErrorBody{Code: "AUDIT_DISABLED", Message: "audit logger is not running"},
		})
		return
	}
	c.JSON(http.StatusOK, response.Envelope{Success: true, Data: h.audit.Stats()})
}

func (h *TransactionHandler) Health(c *gin.Context) {
	if err := h.uc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func idempotencyKey(c *gin.Context, bodyKey string) string {
	if key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(bodyKey)
}

func respondOutput(c *gin.Context, out *transactiondto.TransactionOutput) {
	data := response.FromOutput(out)

	switch out.Outcome {
	case transactiondto.OutcomeDuplicate:
		c.Header(replayHeader, "true")
		c.JSON(http.StatusOK, response.Envelope{Success: true, Data: data, Message: "existing transaction returned"})
	case transactiondto.OutcomePending:
		c.JSON(http.StatusAccepted, response.Envelope{Success: true, Data: data, Message: "transaction pending confirmation"})
	case transactiondto.OutcomeRejected:
		code := out.Transaction.ProviderResponseCode
		info := domain.LookupCode(code)
		c.JSON(info.HTTPStatus, response.Envelope{
			Data:  data,
			Error: &response.ErrorBody{Code: code, Message: out.Transaction.ProviderResponseDescription},
		})
	default:
		c.JSON(http.StatusCreated, response.Envelope{Success: true, Data: data, Message: "transaction accepted"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Envelope{
		Error: &response.ErrorBody{Code: "INVALID_REQUEST", Message: "malformed request body: " + err.Error()},
	})
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, response.Envelope{Error: &response.ErrorBody{Code: code, Message: err.Error()}})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		return http.StatusConflict, "IDEMPOTENCY_KEY_REUSED"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrIdentifierConflict):
		return http.StatusConflict, "IDENTIFIER_CONFLICT"
	case errors.Is(err, domain.ErrConcurrentUpdate), errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict, "CONCURRENT_UPDATE"
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
