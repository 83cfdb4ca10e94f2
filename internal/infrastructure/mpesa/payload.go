package mpesa

import (
	"net/http"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
)

type endpoint struct {
	path   string
	method string
}

var endpoints = map[domain.Operation]endpoint{
	domain.OpC2BPayment:             {"/ipg/v1x/c2bPayment/singleStage/", http.MethodPost},
	domain.OpB2CPayment:             {"/ipg/v1x/b2cPayment/", http.MethodPost},
	domain.OpB2BPayment:             {"/ipg/v1x/b2bPayment/", http.MethodPost},
	domain.OpReversal:               {"/ipg/v1x/reversal/", http.MethodPut},
	domain.OpQueryTransactionStatus: {"/ipg/v1x/queryTransactionStatus/", http.MethodGet},
	domain.OpQueryCustomerName:      {"/ipg/v1x/queryCustomerName/", http.MethodGet},
}

// apiResponse is the union of the output_* fields the gateway returns across
// operations. Customer name queries answer with Result* instead of Response*.
type apiResponse struct {
	ResponseCode        string `json:"output_ResponseCode"`
	ResponseDesc        string `json:"output_ResponseDesc"`
	ResultCode          string `json:"output_ResultCode"`
	ResultDesc          string `json:"output_ResultDesc"`
	TransactionID       string `json:"output_TransactionID"`
	ConversationID      string `json:"output_ConversationID"`
	ThirdPartyReference string `json:"output_ThirdPartyReference"`
	TransactionStatus   string `json:"output_ResponseTransactionStatus"`
	CustomerName        string `json:"output_CustomerName"`
}

func (c *Client) parameters(req domain.ProviderRequest) map[string]string {
	spc := req.ServiceProviderCode
	if spc == "" {
		spc = c.cfg.ServiceProviderCode
	}

	params := map[string]string{
		"input_ThirdPartyReference": req.ThirdPartyReference,
	}

	switch req.Operation {
	case domain.OpC2BPayment, domain.OpB2CPayment:
		params["input_TransactionReference"] = req.TransactionReference
		params["input_CustomerMSISDN"] = req.CustomerMSISDN
		params["input_Amount"] = amount(req)
		params["input_ServiceProviderCode"] = spc
	case domain.OpB2BPayment:
		params["input_TransactionReference"] = req.TransactionReference
		params["input_Amount"] = amount(req)
		params["input_PrimaryPartyCode"] = spc
		params["input_ReceiverPartyCode"] = req.ReceiverPartyCode
	case domain.OpReversal:
		params["input_TransactionID"] = req.TransactionID
		params["input_SecurityCredential"] = c.cfg.SecurityCredential
		params["input_InitiatorIdentifier"] = c.cfg.InitiatorIdentifier
		params["input_ServiceProviderCode"] = spc
		if req.Amount.Valid {
			params["input_ReversalAmount"] = amount(req)
		}
	case domain.OpQueryTransactionStatus:
		params["input_QueryReference"] = req.QueryReference
		params["input_ServiceProviderCode"] = spc
	case domain.OpQueryCustomerName:
		params["input_CustomerMSISDN"] = req.CustomerMSISDN
		params["input_ServiceProviderCode"] = spc
	}
	return params
}

func amount(req domain.ProviderRequest) string {
	if !req.Amount.Valid {
		return ""
	}
	return req.Amount.Decimal.StringFixed(2)
}

func (r apiResponse) toDomain(httpStatus int) *domain.ProviderResponse {
	code := r.ResponseCode
	if code == "" {
		code = r.ResultCode
	}
	desc := r.ResponseDesc
	if desc == "" {
		desc = r.ResultDesc
	}
	if code == "" {
		if httpStatus >= 200 && httpStatus < 300 {
			code = domain.CodeOK
		} else {
			code = domain.CodeUnknown
		}
	}
	if desc == "" {
		desc = domain.LookupCode(code).Message
	}

	return &domain.ProviderResponse{
		HTTPStatus:          httpStatus,
		ResponseCode:        code,
		ResponseDescription: desc,
		TransactionID:       r.TransactionID,
		ConversationID:      r.ConversationID,
		ThirdPartyReference: r.ThirdPartyReference,
		TransactionStatus:   r.TransactionStatus,
		CustomerName:        r.CustomerName,
	}
}
