package purchase

import "fmt"

// ValidateForCommit runs every pre-submission check in one pass and returns
// the full violation list, so callers can display all problems at once
// instead of failing on the first.
func ValidateForCommit(cart *Cart, supplierID int64, paymentTerms string) []Violation {
	var violations []Violation
	if supplierID == 0 {
		violations = append(violations, Violation{Field: "supplier_id", Message: "a supplier must be selected"})
	}
	if cart == nil || cart.Len() == 0 {
		violations = append(violations, Violation{Field: "items", Message: "at least one cart line is required"})
	} else {
		for idx, item := range cart.Items {
			if item.Quantity <= 0 {
				violations = append(violations, Violation{
					Field:   fmt.Sprintf("items[%d].quantity", idx),
					Message: "quantity must be greater than zero",
				})
			}
			if item.UnitCost.IsNegative() {
				violations = append(violations, Violation{
					Field:   fmt.Sprintf("items[%d].cost_price", idx),
					Message: "cost price must not be negative",
				})
			}
		}
	}
	if paymentTerms == "" {
		violations = append(violations, Violation{Field: "payment_terms", Message: "payment terms are required"})
	}
	return violations
}
