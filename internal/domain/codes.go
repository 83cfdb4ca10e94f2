package domain

import "net/http"

// Outcome classes of an M-Pesa response code.
type CodeClass int

const (
	CodeSuccess CodeClass = iota
	CodeFailure
	CodeIndeterminate
)

type ResponseCode struct {
	Code       string
	HTTPStatus int
	Message    string
	Class      CodeClass
}

const (
	CodeOK      = "INS-0"
	CodeUnknown = "INS-999"
)

var responseCodes = map[string]ResponseCode{
	"INS-0":    {"INS-0", http.StatusCreated, "Request processed successfully", CodeSuccess},
	"INS-1":    {"INS-1", http.StatusInternalServerError, "Internal Error", CodeFailure},
	"INS-2":    {"INS-2", http.StatusUnauthorized, "Invalid API Key", CodeFailure},
	"INS-4":    {"INS-4", http.StatusUnauthorized, "User is not active", CodeFailure},
	"INS-5":    {"INS-5", http.StatusUnauthorized, "Transaction cancelled by customer", CodeFailure},
	"INS-6":    {"INS-6", http.StatusUnauthorized, "Transaction Failed", CodeFailure},
	"INS-9":    {"INS-9", http.StatusRequestTimeout, "Request timeout", CodeIndeterminate},
	"INS-10":   {"INS-10", http.StatusConflict, "Duplicate Transaction", CodeIndeterminate},
	"INS-13":   {"INS-13", http.StatusBadRequest, "Invalid Shortcode Used", CodeFailure},
	"INS-14":   {"INS-14", http.StatusBadRequest, "Invalid Reference Used", CodeFailure},
	"INS-15":   {"INS-15", http.StatusBadRequest, "Invalid Amount Used", CodeFailure},
	"INS-16":   {"INS-16", http.StatusServiceUnavailable, "Unable to handle the request due to a temporary overloading", CodeIndeterminate},
	"INS-17":   {"INS-17", http.StatusBadRequest, "Invalid Transaction Reference. Length Should Be Between 1 and 20.", CodeFailure},
	"INS-18":   {"INS-18", http.StatusBadRequest, "Invalid TransactionID Used", CodeFailure},
	"INS-19":   {"INS-19", http.StatusBadRequest, "Invalid ThirdPartyReference Used", CodeFailure},
	"INS-20":   {"INS-20", http.StatusBadRequest, "Not All Parameters Provided. Please try again.", CodeFailure},
	"INS-21":   {"INS-21", http.StatusBadRequest, "Parameter validations failed. Please try again.", CodeFailure},
	"INS-22":   {"INS-22", http.StatusBadRequest, "Invalid Operation Type", CodeFailure},
	"INS-23":   {"INS-23", http.StatusBadRequest, "Unknown Status. Contact M-Pesa Support", CodeFailure},
	"INS-2001": {"INS-2001", http.StatusBadRequest, "Initiator authentication error.", CodeFailure},
	"INS-2002": {"INS-2002", http.StatusBadRequest, "Receiver invalid.", CodeFailure},
	"INS-2006": {"INS-2006", http.StatusUnprocessableEntity, "Insufficient balance", CodeFailure},
	"INS-2051": {"INS-2051", http.StatusBadRequest, "MSISDN invalid.", CodeFailure},
	"INS-2057": {"INS-2057", http.StatusBadRequest, "Language code invalid.", CodeFailure},
	"INS-999":  {"INS-999", http.StatusInternalServerError, "Unknown M-Pesa error", CodeFailure},
}

// LookupCode returns the table entry for code, falling back to INS-999.
func LookupCode(code string) ResponseCode {
	if rc, ok := responseCodes[code]; ok {
		return rc
	}
	return responseCodes[CodeUnknown]
}

// ClassifyCode maps a provider code to success, terminal failure or indeterminate.
func ClassifyCode(code string) CodeClass {
	return LookupCode(code).Class
}
