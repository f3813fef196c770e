package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{29900, "29,900"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-62800, "-62,800"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in))
	}
}

func TestBuildClaimNoticeBody(t *testing.T) {
	body := BuildClaimNoticeBody(ClaimNotice{
		MemberName:   "Kim <b>",
		ClaimNumber:  "CLM-20260520-ABCDEF12",
		OrderNumber:  "ORD-20260520-12345678",
		ClaimType:    "RETURN",
		Status:       "REJECTED",
		RefundAmount: 29900,
		RejectReason: "photos <missing>",
	})

	assert.Contains(t, body, "Your request was rejected")
	assert.Contains(t, body, "₩29,900")
	assert.Contains(t, body, "Kim &lt;b&gt;")
	assert.Contains(t, body, "photos &lt;missing&gt;")
	assert.NotContains(t, body, "<missing>")
}

func TestClaimSubject(t *testing.T) {
	assert.Equal(t,
		"[CLM-1] Your request is complete (order ORD-1)",
		ClaimSubject(ClaimNotice{ClaimNumber: "CLM-1", OrderNumber: "ORD-1", Status: "COMPLETED"}))
	assert.Equal(t,
		"[CLM-1] Your claim was updated (order ORD-1)",
		ClaimSubject(ClaimNotice{ClaimNumber: "CLM-1", OrderNumber: "ORD-1", Status: "SOMETHING"}))
}
