package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/normalize"
)

var freeMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "yahoo.com.mx": true,
	"yahoo.es": true, "hotmail.com": true, "hotmail.es": true, "outlook.com": true,
	"outlook.es": true, "live.com": true, "live.com.mx": true, "msn.com": true,
	"icloud.com": true, "me.com": true, "mac.com": true, "aol.com": true,
	"protonmail.com": true, "proton.me": true, "gmx.com": true, "mail.com": true,
	"zoho.com": true, "yandex.com": true,
}

// SplitName splits a full name into first name and the remainder.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// MapContactProperties builds contact properties. email overrides the
// extraction's address so a placeholder can be supplied.
func MapContactProperties(ext *model.Extraction, email string) map[string]string {
	props := make(map[string]string)
	first, last := SplitName(ext.ContactName)
	setIf(props, "firstname", first)
	setIf(props, "lastname", last)
	if email == "" {
		email = ext.ContactEmail
	}
	setIf(props, "email", strings.ToLower(strings.TrimSpace(email)))
	setIf(props, "phone", ext.ContactPhone)
	setIf(props, "jobtitle", ext.ContactRole)
	setIf(props, "company", ext.CompanyName)
	return props
}

// MapCompanyProperties builds company properties. The domain is taken from
// the contact email unless it belongs to a free-mail provider.
func MapCompanyProperties(ext *model.Extraction) map[string]string {
	props := make(map[string]string)
	setIf(props, "name", ext.CompanyName)
	setIf(props, "domain", CompanyDomain(ext.ContactEmail))
	return props
}

// CompanyDomain returns the business domain of an email address, or "".
func CompanyDomain(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return ""
	}
	domain := email[at+1:]
	if freeMailDomains[domain] || !strings.Contains(domain, ".") {
		return ""
	}
	return domain
}

// PlaceholderEmail derives a stable address for a contact known only by
// name. Two people with the same name at the same company collide. Names
// with no ASCII letters or digits are keyed by a short hash instead.
func PlaceholderEmail(name, company, domain string) string {
	local := placeholderPart(name, ".")
	if local == "" {
		return ""
	}
	if c := placeholderPart(normalize.CompanyName(company), "-"); c != "" {
		local += "." + c
	}
	return local + "@" + domain
}

func placeholderPart(s, sep string) string {
	if slug := normalize.Slug(s, sep); slug != "" {
		return slug
	}
	folded := strings.Join(strings.Fields(normalize.Fold(s)), "")
	if !strings.ContainsFunc(folded, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }) {
		return ""
	}
	sum := sha256.Sum256([]byte(folded))
	return "u" + hex.EncodeToString(sum[:4])
}

func setIf(props map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		props[key] = v
	}
}
