package email

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ClaimNotice is what a member is told when one of their claims changes status.
type ClaimNotice struct {
	MemberName   string
	ClaimNumber  string
	OrderNumber  string
	ClaimType    string
	Status       string
	RefundAmount int64
	RejectReason string
}

var statusHeadlines = map[string]string{
	"REQUESTED": "We received your request",
	"APPROVED":  "Your request was approved",
	"REJECTED":  "Your request was rejected",
	"COMPLETED": "Your request is complete",
}

// ClaimSubject builds the subject line for a claim notice
func ClaimSubject(n ClaimNotice) string {
	return fmt.Sprintf("[%s] %s (order %s)", n.ClaimNumber, headline(n.Status), n.OrderNumber)
}

// BuildClaimNoticeBody builds the HTML body for a claim status email.
// Member-supplied text is escaped.
func BuildClaimNoticeBody(n ClaimNotice) string {
	var details strings.Builder
	row := func(label, value string) {
		details.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 8px 12px; color: #666;">%s</td>
				<td style="padding: 8px 12px; text-align: right; font-weight: 600;">%s</td>
			</tr>`, label, value))
	}
	row("Claim", html.EscapeString(n.ClaimNumber))
	row("Order", html.EscapeString(n.OrderNumber))
	row("Type", html.EscapeString(n.ClaimType))
	if n.RefundAmount > 0 {
		row("Refund", "₩"+formatNumber(n.RefundAmount))
	}
	if n.RejectReason != "" {
		row("Reason", html.EscapeString(n.RejectReason))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #2f4858; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">%s</h1>
	</div>

	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hello %s,</p>
		<p>The status of your claim is now <strong>%s</strong>.</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0; background: #f8f9fa; border-radius: 5px;">
			<tbody>
				%s
			</tbody>
		</table>

		<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This message was sent automatically. Please contact support if you have any questions.
		</p>
	</div>
</body>
</html>`, headline(n.Status), html.EscapeString(n.MemberName), html.EscapeString(n.Status), details.String())
}

func headline(status string) string {
	if h, ok := statusHeadlines[status]; ok {
		return h
	}
	return "Your claim was updated"
}

// formatNumber formats a number with comma separators
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := strconv.FormatInt(n, 10)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return result.String()
}
