package extract

// Reference lists consumed as read-only snapshots for the duration of
// a mining run. Refreshed out-of-band.

// noReplyIndicators flag automated senders that are not people.
var noReplyIndicators = []string{
	"noreply",
	"no-reply",
	"no_reply",
	"donotreply",
	"do-not-reply",
	"mailer-daemon",
	"mail-daemon",
	"postmaster",
	"unsubscribe",
	"notification",
	"notifications",
	"newsletter",
	"mailing",
	"marketing",
	"support",
	"feedback",
	"billing",
	"bounce",
	"alert",
}

// freeProviders are consumer mailbox domains.
var freeProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.fr":       true,
	"yahoo.co.uk":    true,
	"ymail.com":      true,
	"hotmail.com":    true,
	"hotmail.fr":     true,
	"outlook.com":    true,
	"outlook.fr":     true,
	"live.com":       true,
	"live.fr":        true,
	"msn.com":        true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"mac.com":        true,
	"gmx.com":        true,
	"gmx.de":         true,
	"gmx.fr":         true,
	"mail.com":       true,
	"protonmail.com": true,
	"proton.me":      true,
	"zoho.com":       true,
	"yandex.com":     true,
	"yandex.ru":      true,
	"orange.fr":      true,
	"wanadoo.fr":     true,
	"free.fr":        true,
	"sfr.fr":         true,
	"laposte.net":    true,
}

// disposableDomains are throwaway mailbox providers.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"yopmail.com":       true,
	"yopmail.fr":        true,
	"guerrillamail.com": true,
	"sharklasers.com":   true,
	"temp-mail.org":     true,
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"throwawaymail.com": true,
	"getnada.com":       true,
	"maildrop.cc":       true,
	"trashmail.com":     true,
	"dispostable.com":   true,
	"mintemail.com":     true,
	"spamgourmet.com":   true,
	"mytemp.email":      true,
	"burnermail.io":     true,
	"emltmp.com":        true,
	"mohmal.com":        true,
}
