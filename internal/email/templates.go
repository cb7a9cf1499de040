package email

import (
	"fmt"
	"strings"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Name     string
	Quantity int
	Price    int
}

// BuildOrderConfirmationBody builds the HTML body for the order confirmation email
func BuildOrderConfirmationBody(orderID string, total int, items []OrderItem) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%d.%02d</td>
			</tr>`,
			item.Name,
			item.Quantity,
			item.Price/100, item.Price%100,
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 24px;">Thank you for your order</h1>
	<p style="font-size: 14px; color: #666;">Order number</p>
	<p style="font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr>
				<th style="padding: 12px; text-align: left; border-bottom: 2px solid #333;">Item</th>
				<th style="padding: 12px; text-align: center; border-bottom: 2px solid #333;">Qty</th>
				<th style="padding: 12px; text-align: right; border-bottom: 2px solid #333;">Price</th>
			</tr>
		</thead>
		<tbody>%s</tbody>
	</table>
	<p style="font-size: 18px; font-weight: bold; text-align: right;">Total: $%d.%02d</p>
</body>
</html>`, orderID, itemsHTML.String(), total/100, total%100)
}

// BuildStatusUpdateBody builds the HTML body for a status-change email
func BuildStatusUpdateBody(orderID, newStatus string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 24px;">Your order was updated</h1>
	<p>Order <span style="font-family: monospace; font-weight: bold;">%s</span> is now <strong>%s</strong>.</p>
</body>
</html>`, orderID, newStatus)
}
