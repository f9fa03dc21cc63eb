package email

import (
	"fmt"
	"strings"
)

// ReportMessage builds the delivery email for a finished condition report,
// with the PDF attached.
func ReportMessage(from, to, address, reportType, reportDate string, roomCount int, pdf []byte) Message {
	if address == "" {
		address = "Property"
	}
	if reportType == "" {
		reportType = "Inspection"
	}

	html := fmt.Sprintf(`
<div style="font-family:-apple-system,sans-serif;max-width:600px;margin:0 auto;padding:20px;background:#fff;">
  <div style="text-align:center;padding:16px 0;border-bottom:3px solid #2563eb;">
    <span style="font-size:24px;font-weight:800;color:#1a1a2e;">Condition</span><span style="font-size:24px;font-weight:800;color:#2563eb;">Report</span>
    <br><span style="font-size:11px;color:#999;font-weight:500;">a DataWeaveAI company</span>
  </div>
  <div style="padding:24px 0;">
    <h2 style="color:#1a1a2e;margin:0 0 8px;font-size:20px;">%s Inspection Report</h2>
    <p style="color:#555;margin:0 0 20px;font-size:15px;">Your condition report for <strong>%s</strong> is attached as a PDF.</p>
    <table style="width:100%%;border-collapse:collapse;margin:16px 0;background:#f8f9fa;border-radius:8px;">
      <tr><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;color:#888;font-size:13px;width:120px;">Address</td><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;font-size:14px;font-weight:600;">%s</td></tr>
      <tr><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;color:#888;font-size:13px;">Report Type</td><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;font-size:14px;">%s</td></tr>
      <tr><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;color:#888;font-size:13px;">Date</td><td style="padding:10px 14px;border-bottom:1px solid #e5e7eb;font-size:14px;">%s</td></tr>
      <tr><td style="padding:10px 14px;color:#888;font-size:13px;">Rooms</td><td style="padding:10px 14px;font-size:14px;">%d</td></tr>
    </table>
    <p style="color:#555;font-size:13px;margin:20px 0 0;">Open the attached PDF to view the full report with photos, condition ratings, and action items.</p>
  </div>
  <div style="border-top:1px solid #e5e7eb;padding:16px 0 0;text-align:center;">
    <p style="color:#999;font-size:11px;margin:0;">Generated by <a href="https://condition-report.com" style="color:#2563eb;text-decoration:none;">condition-report.com</a></p>
  </div>
</div>`, reportType, address, address, reportType, reportDate, roomCount)

	filename := fmt.Sprintf("Condition_Report_%s.pdf", strings.ReplaceAll(reportDate, " ", "_"))
	return Message{
		From:    from,
		To:      to,
		Subject: fmt.Sprintf("Property Condition Report - %s", address),
		HTML:    html,
		Text:    fmt.Sprintf("Your %s condition report for %s is attached.", reportType, address),
		Attachments: []Attachment{
			{Filename: filename, Content: pdf},
		},
	}
}
