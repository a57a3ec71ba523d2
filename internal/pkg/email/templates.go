package email

// BaseTemplate wraps every notification body
const BaseTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #1f2430; margin: 0; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto;">
    <h2 style="color: #0a7c5c;">SwapCash</h2>
    {{template "content" .}}
    <p style="color: #8a8f99; font-size: 12px; margin-top: 32px;">
      This is an automated message from SwapCash. Do not reply to this email.
    </p>
  </div>
</body>
</html>`

// DepositCompletedTemplate notifies a wallet credit after a confirmed deposit
const DepositCompletedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>Your deposit of <strong>{{.Amount}} {{.Currency}}</strong> has been confirmed and credited to your wallet.</p>
<p>Reference: {{.Reference}}</p>
{{end}}`

// TransferSentTemplate notifies the sender of a completed transfer
const TransferSentTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>You sent <strong>{{.Amount}} {{.Currency}}</strong> to {{.Counterpart}}.</p>
{{if .Fee}}<p>Transfer fee: {{.Fee}} {{.Currency}}</p>{{end}}
{{end}}`

// TransferReceivedTemplate notifies the recipient of a completed transfer
const TransferReceivedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>You received <strong>{{.Amount}} {{.Currency}}</strong> from {{.Counterpart}}.</p>
{{end}}`

// WithdrawalInitiatedTemplate notifies that a payout is on its way
const WithdrawalInitiatedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>Your withdrawal of <strong>{{.Amount}} {{.Currency}}</strong> is being processed.</p>
<p>Reference: {{.Reference}}</p>
{{end}}`

// WithdrawalFailedTemplate notifies that a payout failed and the wallet was refunded
const WithdrawalFailedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>Your withdrawal of <strong>{{.Amount}} {{.Currency}}</strong> could not be completed. The amount has been returned to your wallet.</p>
<p>Reference: {{.Reference}}</p>
{{end}}`

// SubscriptionActivatedTemplate notifies a successful plan activation
const SubscriptionActivatedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>Your <strong>{{.Plan}}</strong> subscription is now active.</p>
{{end}}`

// CommissionEarnedTemplate notifies a referrer about an earned commission
const CommissionEarnedTemplate = `{{define "content"}}
<p>Hi {{.Name}},</p>
<p>You earned a referral commission of <strong>{{.Amount}} {{.Currency}}</strong>. It has been credited to your wallet.</p>
{{end}}`
