package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// CodeRule maps a 4-digit revenue code to its spreadsheet category.
type CodeRule struct {
	Codigo string `json:"codigo" binding:"required"`
	Aba    string `json:"aba" binding:"required"`
}

// CNPJRule maps a formatted CNPJ to its contributing org unit code.
type CNPJRule struct {
	CNPJ string `json:"cnpj" binding:"required"`
	UO   string `json:"uo_contribuinte" binding:"required"`
}
