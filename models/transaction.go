package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the tender used for a sale.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentZelle         PaymentMethod = "Zelle"
	PaymentCreditCard    PaymentMethod = "Credit Card"
	PaymentDebitCard     PaymentMethod = "Debit Card"
	PaymentMobilePayment PaymentMethod = "Mobile Payment"
	PaymentCheck         PaymentMethod = "Check"
	PaymentOther         PaymentMethod = "Other"
)

// PaymentMethods lists the accepted tenders in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentZelle,
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentMobilePayment,
	PaymentCheck,
	PaymentOther,
}

// Known reports whether m is an accepted tender.
func (m PaymentMethod) Known() bool {
	for _, k := range PaymentMethods {
		if m == k {
			return true
		}
	}
	return false
}

// RequiresConfirmation reports whether the tender carries a confirmation number.
func (m PaymentMethod) RequiresConfirmation() bool {
	return m == PaymentZelle
}

// Payment is a tender plus the confirmation number electronic tenders carry.
// Build it with CashPayment or ElectronicPayment.
type Payment struct {
	Method             PaymentMethod
	ConfirmationNumber string
}

// CashPayment is a payment without confirmation.
func CashPayment() Payment { return Payment{Method: PaymentCash} }

// ElectronicPayment is a confirmed tender such as Zelle.
func ElectronicPayment(method PaymentMethod, confirmation string) Payment {
	return Payment{Method: method, ConfirmationNumber: strings.TrimSpace(confirmation)}
}

// Validate checks that the confirmation number is present exactly when the
// tender needs one.
func (p Payment) Validate() error {
	if !p.Method.Known() {
		return fmt.Errorf("unknown payment method %q", p.Method)
	}
	if p.Method.RequiresConfirmation() && p.ConfirmationNumber == "" {
		return fmt.Errorf("%s payments require a confirmation number", p.Method)
	}
	if !p.Method.RequiresConfirmation() && p.ConfirmationNumber != "" {
		return fmt.Errorf("%s payments do not take a confirmation number", p.Method)
	}
	return nil
}

// String renders the tender the way the sales sheet shows it.
func (p Payment) String() string {
	if p.ConfirmationNumber != "" {
		return fmt.Sprintf("%s (Conf: %s)", p.Method, p.ConfirmationNumber)
	}
	return string(p.Method)
}

// Line is a cart line as it was when the sale was rung up.
type Line struct {
	ItemID    string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is unit price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

const TransactionTypeSale = "sale"

// Transaction is a committed sale. It is never mutated once stored.
type Transaction struct {
	ID            string
	Lines         []Line
	Total         decimal.Decimal
	Payment       Payment
	CustomerNotes string
	Stamp
}

// ItemCount is the number of distinct lines.
func (t Transaction) ItemCount() int { return len(t.Lines) }

// Quantity is the number of units sold.
func (t Transaction) Quantity() int {
	var n int
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Summary renders the receipt text shown after checkout.
func (t Transaction) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction Total: $%s\n", t.Total.StringFixed(2))
	fmt.Fprintf(&b, "Payment Method: %s\n", t.Payment.Method)
	fmt.Fprintf(&b, "Items (%d):\n", len(t.Lines))
	for _, l := range t.Lines {
		fmt.Fprintf(&b, "  • %s x%d = $%s\n", l.Name, l.Quantity, l.Subtotal().StringFixed(2))
	}
	return b.String()
}

// transactionDoc is the stored shape of a sale.
type transactionDoc struct {
	ID                 string          `json:"id,omitempty"`
	Items              []Line          `json:"items"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	ConfirmationNumber string          `json:"confirmation_number,omitempty"`
	CustomerNotes      string          `json:"customer_notes"`
	Timestamp          string          `json:"timestamp"`
	Date               string          `json:"date"`
	Time               string          `json:"time"`
	Type               string          `json:"type"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionDoc{
		ID:                 t.ID,
		Items:              t.Lines,
		Total:              t.Total,
		PaymentMethod:      t.Payment.Method,
		ConfirmationNumber: t.Payment.ConfirmationNumber,
		CustomerNotes:      t.CustomerNotes,
		Timestamp:          formatTimestamp(t.Timestamp),
		Date:               t.Date,
		Time:               t.Time,
		Type:               TransactionTypeSale,
	})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var doc transactionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	ts, err := ParseTimestamp(doc.Timestamp)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:            doc.ID,
		Lines:         doc.Items,
		Total:         doc.Total,
		Payment:       Payment{Method: doc.PaymentMethod, ConfirmationNumber: doc.ConfirmationNumber},
		CustomerNotes: doc.CustomerNotes,
		Stamp:         Stamp{Timestamp: ts, Date: doc.Date, Time: doc.Time},
	}
	return nil
}
