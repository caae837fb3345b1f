package email

const TemplateCreditsExpiring = "credits_expiring"

// BaseTemplate is the layout every email is rendered into
const BaseTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f7fa; color: #1f2933; }
        .container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
        .card { background: #ffffff; border-radius: 12px; padding: 32px; border: 1px solid #e4e7eb; }
        h2 { font-size: 22px; margin: 0 0 16px; }
        p { font-size: 16px; line-height: 1.6; margin: 0 0 16px; color: #52606d; }
        table { width: 100%; border-collapse: collapse; margin: 16px 0; }
        td { padding: 8px 0; border-bottom: 1px solid #e4e7eb; }
        .amount { text-align: right; font-weight: 600; }
        .footer { text-align: center; margin-top: 24px; font-size: 12px; color: #9aa5b1; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">{{.Content}}</div>
        <div class="footer">CrowdLend &middot; you receive this because you hold referral credits</div>
    </div>
</body>
</html>`

// CreditsExpiringTemplate expects Name, Total, EarliestExpiry and Credits[{Amount, ExpiresOn}]
const CreditsExpiringTemplate = `<h2>Your referral credits expire soon</h2>
<p>Hi {{.Name}}, {{.Total}} of referral credit will expire, the first part on {{.EarliestExpiry}}.
Use it on your next loan or investment fee before it is gone.</p>
<table>
{{range .Credits}}<tr><td>Expires {{.ExpiresOn}}</td><td class="amount">{{.Amount}}</td></tr>
{{end}}</table>`
