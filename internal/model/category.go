package model

// Category is one budgeting-backend spending category.
type Category struct {
	ID   string
	Name string
}

// Payee is one budgeting-backend payee.
type Payee struct {
	ID   string
	Name string
}

// AccountMapping associates one bank account with its budgeting-backend
// account and the messaging channel notified about its activity. Read-only
// after settings load.
type AccountMapping struct {
	BankAccountID   string
	BudgetAccountID string
	ChatID          int64
	Alias           string
}
