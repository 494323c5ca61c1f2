package belvo

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeInflow  = "INFLOW"
	TypeOutflow = "OUTFLOW"

	LinkStatusValid = "valid"
)

var ErrMissingParams = errors.New("all parameters are required")

// UpstreamError wraps every failure talking to Belvo. Its text is returned to API clients.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("belvo %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// Page is Belvo's paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Institution struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Type         string   `json:"type"`
	Logo         string   `json:"logo"`
	IconLogo     string   `json:"icon_logo"`
	TextLogo     string   `json:"text_logo"`
	CountryCodes []string `json:"country_codes"`
	Website      string   `json:"website"`
}

type InstitutionsPage = Page[Institution]

// Account carries the reshaped account fields. Balance and institution are passed
// through as Belvo returns them.
type Account struct {
	ID          string          `json:"id"`
	Link        string          `json:"link"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Type        *string         `json:"type"`
	Balance     json.RawMessage `json:"balance"`
	Currency    string          `json:"currency"`
	Institution json.RawMessage `json:"institution"`
}

type AccountsPage struct {
	Count   int       `json:"count"`
	Results []Account `json:"results"`
}

type Transaction struct {
	ID           string          `json:"id"`
	Amount       float64         `json:"amount"`
	Type         string          `json:"type"`
	Category     *string         `json:"category"`
	Description  *string         `json:"description"`
	Merchant     json.RawMessage `json:"merchant"`
	TransactedAt string          `json:"transacted_at"`
	Status       string          `json:"status"`
}

type KPI struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// ComputeKPI sums INFLOW amounts as income and OUTFLOW amounts as expenses.
// Other types are ignored.
func ComputeKPI(txs []Transaction) KPI {
	var k KPI

	for _, t := range txs {
		switch t.Type {
		case TypeInflow:
			k.Income += t.Amount
		case TypeOutflow:
			k.Expenses += t.Amount
		}
	}

	k.Balance = k.Income - k.Expenses

	return k
}

type TransactionsReport struct {
	KPI          KPI           `json:"kpi"`
	Transactions []Transaction `json:"transactions"`
}

type TransactionQuery struct {
	LinkID    string
	AccountID string
	DateFrom  string
	DateTo    string
}

func (q TransactionQuery) Validate() error {
	if q.LinkID == "" || q.AccountID == "" || q.DateFrom == "" || q.DateTo == "" {
		return ErrMissingParams
	}

	return nil
}

type DetailAccount struct {
	ID          string          `json:"id"`
	Link        string          `json:"link"`
	Institution json.RawMessage `json:"institution"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Balance     json.RawMessage `json:"balance"`
	Currency    string          `json:"currency"`
}

type TransactionDetail struct {
	ID                          string          `json:"id"`
	InternalIdentification      *string         `json:"internal_identification"`
	Account                     DetailAccount   `json:"account"`
	Amount                      float64         `json:"amount"`
	LocalCurrencyAmount         *float64        `json:"local_currency_amount"`
	Currency                    string          `json:"currency"`
	Description                 *string         `json:"description"`
	Category                    *string         `json:"category"`
	Subcategory                 *string         `json:"subcategory"`
	Type                        string          `json:"type"`
	Status                      string          `json:"status"`
	Merchant                    json.RawMessage `json:"merchant"`
	CreditCardData              json.RawMessage `json:"credit_card_data"`
	TransactedAt                string          `json:"transacted_at"`
	CreatedAt                   string          `json:"created_at"`
	ValueDate                   *string         `json:"value_date"`
	PaymentType                 *string         `json:"payment_type"`
	OperationType               *string         `json:"operation_type"`
	OperationTypeAdditionalInfo *string         `json:"operation_type_additional_info"`
	Counterparty                json.RawMessage `json:"counterparty"`
	LoanData                    json.RawMessage `json:"loan_data"`
}

type Link struct {
	ID             string  `json:"id"`
	Institution    string  `json:"institution"`
	AccessMode     string  `json:"access_mode"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	LastAccessedAt *string `json:"last_accessed_at"`
	ExternalID     *string `json:"external_id"`
}

type Credential struct {
	Institution string `json:"institution" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type CreatedLink struct {
	Link               Link `json:"link"`
	AccountsRegistered bool `json:"accounts_registered"`
}

type CreatedLinks struct {
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Links   []CreatedLink `json:"links"`
}

type AccountSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Balance  json.RawMessage `json:"balance"`
	Currency string          `json:"currency"`
}

type InstitutionAccounts struct {
	InstitutionName string           `json:"institution_name"`
	LinkID          string           `json:"link_id"`
	Accounts        []AccountSummary `json:"accounts"`
}

type AllAccounts struct {
	TotalAccounts int                   `json:"total_accounts"`
	Institutions  []InstitutionAccounts `json:"institutions"`
}

var emptyObject = json.RawMessage(`{}`)

// objectOrEmpty replaces a missing or null JSON value with {}.
func objectOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return emptyObject
	}

	return raw
}
