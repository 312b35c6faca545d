// Package mailer delivers transactional account email through a log, SMTP or MailerSend driver.
package mailer

import (
	"fmt"
	"html"
	"time"

	"github.com/wizlearn/account-service/internal/core/domain"
)

const brand = "WizLearn"

// Message is a rendered email ready for any driver.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
	// Kind labels the message for logs.
	Kind string
}

func otpMessage(to, code string, purpose domain.ChallengePurpose, expiresAt time.Time) Message {
	subject, lead := "Your verification code", "Use this code to finish signing up"
	switch purpose {
	case domain.PurposeAdminLogin:
		subject, lead = "Your sign-in code", "Use this code to finish signing in to the admin console"
	case domain.PurposePasswordReset:
		subject, lead = "Reset your password", "Use this code to reset your password"
	}
	until := expiresAt.UTC().Format("15:04 MST")
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s: %s", brand, subject),
		Text:    fmt.Sprintf("%s: %s\n\nThe code expires at %s. If you did not request it, ignore this email.", lead, code, until),
		HTML: fmt.Sprintf(`<h2>%s</h2><p>%s:</p><p><strong style="font-size: 24px;">%s</strong></p><p>The code expires at %s. If you did not request it, ignore this email.</p>`,
			html.EscapeString(subject), html.EscapeString(lead), html.EscapeString(code), until),
		Kind: "otp_" + string(purpose),
	}
}

func welcomeMessage(to, name string, at time.Time) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Welcome to %s", brand),
		Text:    fmt.Sprintf("Hi %s,\n\nYour account is ready. You joined on %s.", name, at.UTC().Format("2 January 2006")),
		HTML: fmt.Sprintf("<h2>Welcome to %s</h2><p>Hi %s,</p><p>Your account is ready. You joined on %s.</p>",
			brand, html.EscapeString(name), at.UTC().Format("2 January 2006")),
		Kind: "welcome",
	}
}

func tutorWelcomeMessage(to, name, tutorCode string, at time.Time) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Welcome to %s, your tutor application is in review", brand),
		Text: fmt.Sprintf("Hi %s,\n\nThanks for registering as a tutor on %s. Your tutor ID is %s.\nAn administrator will review your account shortly.",
			name, at.UTC().Format("2 January 2006"), tutorCode),
		HTML: fmt.Sprintf("<h2>Thanks for applying</h2><p>Hi %s,</p><p>Your tutor ID is <strong>%s</strong>.</p><p>An administrator will review your account shortly.</p>",
			html.EscapeString(name), html.EscapeString(tutorCode)),
		Kind: "tutor_welcome",
	}
}

func tutorApprovedMessage(to, name string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Your %s tutor account is approved", brand),
		Text:    fmt.Sprintf("Hi %s,\n\nYour tutor account has been approved. You can now sign in.", name),
		HTML:    fmt.Sprintf("<h2>You're approved</h2><p>Hi %s,</p><p>Your tutor account has been approved. You can now sign in.</p>", html.EscapeString(name)),
		Kind:    "tutor_approved",
	}
}

func lockNoticeMessage(to string, unlockAt time.Time) Message {
	until := unlockAt.UTC().Format(time.RFC1123)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s: account temporarily locked", brand),
		Text:    fmt.Sprintf("We locked your account after repeated failed sign-in attempts. You can try again after %s.", until),
		HTML:    fmt.Sprintf("<h2>Account temporarily locked</h2><p>We locked your account after repeated failed sign-in attempts.</p><p>You can try again after %s.</p>", until),
		Kind:    "lock_notice",
	}
}
