package onboarding

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// blockedEmailDomains are personal and disposable mail providers rejected
// at the founder step. Checked against the registrable domain, so
// subdomain variants do not slip through.
var blockedEmailDomains = map[string]bool{
	"gmail.com":         true,
	"googlemail.com":    true,
	"yahoo.com":         true,
	"hotmail.com":       true,
	"outlook.com":       true,
	"live.com":          true,
	"aol.com":           true,
	"icloud.com":        true,
	"proton.me":         true,
	"protonmail.com":    true,
	"mailinator.com":    true,
	"tempmail.com":      true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"yopmail.com":       true,
}

func validateBusinessEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return clientErrf("invalid email address %q", email)
	}
	host := strings.ToLower(email[at+1:])
	if !strings.Contains(host, ".") {
		return clientErrf("invalid email address %q", email)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	if blockedEmailDomains[registrable] {
		return clientErrf("please use your work email: personal and temporary email domains are not accepted")
	}
	return nil
}
