package main

import (
	"fmt"
	"html"
	"log"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/mailer"
)

// smtpConfig holds outgoing mail settings read from the environment
type smtpConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	TLS           bool
	SenderName    string
	SenderAddress string
}

// getSMTPConfig reads SMTP_* variables. An empty host means mail stays
// whatever PocketBase settings already hold.
func getSMTPConfig() smtpConfig {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil || port <= 0 {
		port = 587
	}
	cfg := smtpConfig{
		Host:          os.Getenv("SMTP_HOST"),
		Port:          port,
		Username:      os.Getenv("SMTP_USERNAME"),
		Password:      os.Getenv("SMTP_PASSWORD"),
		TLS:           os.Getenv("SMTP_TLS") == "true",
		SenderName:    os.Getenv("SMTP_SENDER_NAME"),
		SenderAddress: os.Getenv("SMTP_SENDER_ADDRESS"),
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "Concierge"
	}
	return cfg
}

// configurePocketBaseSMTP applies SMTP_* settings to PocketBase
func configurePocketBaseSMTP(app core.App) {
	cfg := getSMTPConfig()
	if cfg.Host == "" || cfg.Password == "" {
		log.Println("[SMTP] No SMTP_HOST/SMTP_PASSWORD configured, skipping SMTP setup")
		return
	}

	settings := app.Settings()

	if settings.SMTP.Enabled && settings.SMTP.Host == cfg.Host && settings.SMTP.Port == cfg.Port &&
		settings.SMTP.Username == cfg.Username && settings.Meta.SenderAddress == cfg.SenderAddress {
		log.Println("[SMTP] Already configured correctly")
		return
	}

	settings.SMTP.Enabled = true
	settings.SMTP.Host = cfg.Host
	settings.SMTP.Port = cfg.Port
	settings.SMTP.Username = cfg.Username
	settings.SMTP.Password = cfg.Password
	settings.SMTP.TLS = cfg.TLS

	settings.Meta.SenderName = cfg.SenderName
	if cfg.SenderAddress != "" {
		settings.Meta.SenderAddress = cfg.SenderAddress
	}

	if err := app.Save(settings); err != nil {
		log.Printf("[SMTP] Failed to save settings: %v", err)
	} else {
		log.Println("[SMTP] Settings saved successfully")
	}
}

// wrapEmailHTML wraps content in the shared email layout
func wrapEmailHTML(companyName, content string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; line-height: 1.4; color: #202020; font-size: 16px; margin: 0; padding: 0; background: #ffffff;">
    <div style="text-align: center; max-width: 660px; margin: auto; padding: 24px; font-size: 20px; letter-spacing: 2px;">
        ` + html.EscapeString(strings.ToUpper(companyName)) + `
    </div>
    <div style="max-width: 660px; margin: auto; padding: 24px; background: #f6f4f0;">
        <div style="background: #ffffff; padding: 24px; border-radius: 8px;">
` + content + `
        </div>
    </div>
</body>
</html>`
}

// offerEmail is the data shown in a shared offer email
type offerEmail struct {
	CompanyName   string
	RecipientName string
	Title         string
	Total         string
	ValidUntil    string
	URL           string
}

// renderOfferEmail builds the subject and HTML body of a shared offer email
func renderOfferEmail(o offerEmail) (subject, body string) {
	name := strings.TrimSpace(o.RecipientName)
	if name == "" {
		name = "there"
	} else {
		name = strings.Fields(name)[0]
	}

	validLine := ""
	if o.ValidUntil != "" {
		validLine = fmt.Sprintf(`
            <p style="color: #4a4a4a; font-size: 16px; margin: 0 0 16px 0;">This offer is valid until %s.</p>`, html.EscapeString(o.ValidUntil))
	}

	subject = fmt.Sprintf("Your offer from %s: %s", o.CompanyName, o.Title)
	body = wrapEmailHTML(o.CompanyName, fmt.Sprintf(`
            <p style="color: #4a4a4a; font-size: 16px; margin: 0 0 16px 0;">Hi %s,</p>
            <p style="color: #4a4a4a; font-size: 16px; margin: 0 0 16px 0;">
                We have prepared <strong>%s</strong> for you, totalling <strong>%s</strong>.
            </p>
            %s
            <div style="text-align: center; margin: 32px 0;">
                <a href="%s" style="display: inline-block; background: #0d0d0d; color: #ffffff; padding: 14px 32px; text-decoration: none; border-radius: 6px; font-size: 16px;">
                    View offer
                </a>
            </div>
            <p style="color: #9a9a9a; font-size: 14px; margin: 24px 0 8px 0;">Copy and paste if the link doesn't work:</p>
            <p style="color: #666666; font-size: 13px; font-family: 'Courier New', Courier, monospace; word-break: break-all; margin: 0;">%s</p>
`, html.EscapeString(name), html.EscapeString(o.Title), html.EscapeString(o.Total), validLine, o.URL, html.EscapeString(o.URL)))
	return subject, body
}

// sendOfferEmail sends the share link of an offer to its recipient
func sendOfferEmail(app core.App, to mail.Address, o offerEmail) error {
	subject, body := renderOfferEmail(o)

	msg := &mailer.Message{
		From:    mail.Address{Address: app.Settings().Meta.SenderAddress, Name: app.Settings().Meta.SenderName},
		To:      []mail.Address{to},
		Subject: subject,
		HTML:    body,
	}

	if err := app.NewMailClient().Send(msg); err != nil {
		log.Printf("[Email] Failed to send offer to %s: %v", to.Address, err)
		return err
	}

	log.Printf("[Email] Offer %q sent to %s", o.Title, to.Address)
	return nil
}
