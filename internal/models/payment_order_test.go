package models

import (
	"testing"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
)

func TestPaymentOrderIsTerminal(t *testing.T) {
	cases := map[string]bool{
		constants.OrderStatusPending: false,
		constants.OrderStatusPaid:    true,
		constants.OrderStatusFailed:  true,
	}
	for status, terminal := range cases {
		order := &PaymentOrder{Status: status}
		if order.IsTerminal() != terminal {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, order.IsTerminal(), terminal)
		}
	}
}
