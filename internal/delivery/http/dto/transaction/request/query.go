package request

type TransactionStatusQueryRequest struct {
	QueryReference      string `json:"query_reference"`
	ThirdPartyReference string `json:"third_party_reference"`
	ServiceProviderCode string `json:"service_provider_code"`
}

type CustomerNameQueryRequest struct {
	CustomerMSISDN      string `json:"customer_msisdn"`
	ThirdPartyReference string `json:"third_party_reference"`
	ServiceProviderCode string `json:"service_provider_code"`
}
